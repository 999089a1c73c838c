// Package postgres implements store.Store on PostgreSQL via the pgx stdlib
// driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/slotbot-ai/slotbot/internal/model"
	"github.com/slotbot-ai/slotbot/internal/store"
)

// Open opens a PostgreSQL connection and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id       TEXT PRIMARY KEY,
    time_zone     TEXT NOT NULL,
    creation_time TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS turns (
    turn_id         TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    text            TEXT NOT NULL,
    ts              TIMESTAMPTZ NOT NULL,
    intent          TEXT,
    descriptor_json JSONB,
    response        TEXT NOT NULL DEFAULT '',
    embedded        BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_turns_user_ts ON turns(user_id, ts DESC);
CREATE TABLE IF NOT EXISTS descriptors (
    descriptor_id     TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL,
    title             TEXT NOT NULL,
    start_time        TIMESTAMPTZ NOT NULL,
    end_time          TIMESTAMPTZ NOT NULL,
    modality          TEXT NOT NULL,
    location          TEXT NOT NULL DEFAULT '',
    participants_json JSONB NOT NULL DEFAULT '[]',
    calendar_event_id TEXT,
    task_id           TEXT,
    pending_legs      TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL,
    creation_time     TIMESTAMPTZ NOT NULL,
    update_time       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_descriptors_user_status ON descriptors(user_id, status);
`

// New opens the database and ensures the schema exists.
func New(dsn string) (store.Store, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	return NewWithDB(db)
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) (store.Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &pgStore{db: db}, nil
}

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users             { return &users{db: s.db} }
func (s *pgStore) Turns() store.Turns             { return &turns{db: s.db} }
func (s *pgStore) Descriptors() store.Descriptors { return &descriptors{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) GetOrCreate(ctx context.Context, userID, defaultTZ string) (*model.User, error) {
	var out model.User
	row := u.db.QueryRowContext(ctx, `
        INSERT INTO users (user_id, time_zone, creation_time)
        VALUES ($1,$2,now())
        ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
        RETURNING user_id, time_zone, creation_time`, userID, defaultTZ)
	if err := row.Scan(&out.UserID, &out.TimeZone, &out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	var out model.User
	row := u.db.QueryRowContext(ctx,
		`SELECT user_id, time_zone, creation_time FROM users WHERE user_id=$1`, userID)
	if err := row.Scan(&out.UserID, &out.TimeZone, &out.CreationTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// --- Turns ---

type turns struct{ db *sql.DB }

func (t *turns) Create(ctx context.Context, in *model.Turn) (*model.Turn, error) {
	out := *in
	if out.TurnID == "" {
		out.TurnID = uuid.New().String()
	}
	var intent *string
	if out.Intent != nil {
		s := string(*out.Intent)
		intent = &s
	}
	var descJSON *string
	if out.Descriptor != nil {
		b, err := json.Marshal(out.Descriptor)
		if err != nil {
			return nil, err
		}
		s := string(b)
		descJSON = &s
	}
	_, err := t.db.ExecContext(ctx, `
        INSERT INTO turns (turn_id, user_id, text, ts, intent, descriptor_json, response, embedded)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		out.TurnID, out.UserID, out.Text, out.Timestamp.UTC(), intent, descJSON, out.Response, out.Embedded)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *turns) ListRecent(ctx context.Context, userID string, limit int) ([]*model.Turn, error) {
	rows, err := t.db.QueryContext(ctx, `
        SELECT turn_id, user_id, text, ts, intent, descriptor_json, response, embedded
        FROM turns WHERE user_id=$1 ORDER BY ts DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.Turn
	for rows.Next() {
		var out model.Turn
		var intent, descJSON *string
		if err := rows.Scan(&out.TurnID, &out.UserID, &out.Text, &out.Timestamp, &intent, &descJSON, &out.Response, &out.Embedded); err != nil {
			return nil, err
		}
		if intent != nil {
			it := model.Intent(*intent)
			out.Intent = &it
		}
		if descJSON != nil && *descJSON != "" {
			var d model.MeetingDescriptor
			if err := json.Unmarshal([]byte(*descJSON), &d); err != nil {
				return nil, err
			}
			out.Descriptor = &d
		}
		res = append(res, &out)
	}
	return res, rows.Err()
}

// --- Descriptors ---

type descriptors struct{ db *sql.DB }

const descriptorCols = `descriptor_id, user_id, title, start_time, end_time, modality, location,
    participants_json, calendar_event_id, task_id, pending_legs, status, creation_time, update_time`

func (d *descriptors) Create(ctx context.Context, in *model.MeetingDescriptor) (*model.MeetingDescriptor, error) {
	out := *in
	if out.DescriptorID == "" {
		out.DescriptorID = uuid.New().String()
	}
	now := time.Now().UTC()
	if out.CreationTime.IsZero() {
		out.CreationTime = now
	}
	if out.UpdateTime.IsZero() {
		out.UpdateTime = now
	}
	parts, err := json.Marshal(out.Participants)
	if err != nil {
		return nil, err
	}
	_, err = d.db.ExecContext(ctx, `
        INSERT INTO descriptors (`+descriptorCols+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		out.DescriptorID, out.UserID, out.Title, out.Start.UTC(), out.End.UTC(), string(out.Modality),
		out.Location, string(parts), out.CalendarEventID, out.TaskID, joinLegs(out.PendingLegs),
		string(out.Status), out.CreationTime, out.UpdateTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *descriptors) Update(ctx context.Context, in *model.MeetingDescriptor) error {
	if in.UpdateTime.IsZero() {
		in.UpdateTime = time.Now().UTC()
	}
	parts, err := json.Marshal(in.Participants)
	if err != nil {
		return err
	}
	res, err := d.db.ExecContext(ctx, `
        UPDATE descriptors SET title=$1, start_time=$2, end_time=$3, modality=$4, location=$5,
            participants_json=$6, calendar_event_id=$7, task_id=$8, pending_legs=$9, status=$10, update_time=$11
        WHERE user_id=$12 AND descriptor_id=$13`,
		in.Title, in.Start.UTC(), in.End.UTC(), string(in.Modality), in.Location,
		string(parts), in.CalendarEventID, in.TaskID, joinLegs(in.PendingLegs), string(in.Status),
		in.UpdateTime, in.UserID, in.DescriptorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (d *descriptors) GetByID(ctx context.Context, userID, descriptorID string) (*model.MeetingDescriptor, error) {
	row := d.db.QueryRowContext(ctx, `
        SELECT `+descriptorCols+` FROM descriptors WHERE user_id=$1 AND descriptor_id=$2`,
		userID, descriptorID)
	return scanDescriptor(row)
}

func (d *descriptors) Open(ctx context.Context, userID string) (*model.MeetingDescriptor, error) {
	row := d.db.QueryRowContext(ctx, `
        SELECT `+descriptorCols+` FROM descriptors
        WHERE user_id=$1 AND status IN ($2,$3)
        ORDER BY update_time DESC LIMIT 1`,
		userID, string(model.StatusAwaitingClarification), string(model.StatusConfirmed))
	return scanDescriptor(row)
}

func (d *descriptors) ListScheduled(ctx context.Context, userID string, from, to time.Time) ([]*model.MeetingDescriptor, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT `+descriptorCols+` FROM descriptors
        WHERE user_id=$1 AND status=$2 AND start_time >= $3 AND start_time < $4
        ORDER BY start_time ASC`,
		userID, string(model.StatusScheduled), from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.MeetingDescriptor
	for rows.Next() {
		md, err := scanDescriptor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, md)
	}
	return res, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanDescriptor(row rowScanner) (*model.MeetingDescriptor, error) {
	var out model.MeetingDescriptor
	var modality, status, partsJSON, legs string
	err := row.Scan(&out.DescriptorID, &out.UserID, &out.Title, &out.Start, &out.End, &modality,
		&out.Location, &partsJSON, &out.CalendarEventID, &out.TaskID, &legs, &status,
		&out.CreationTime, &out.UpdateTime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	out.Modality = model.Modality(modality)
	out.Status = model.Status(status)
	if err := json.Unmarshal([]byte(partsJSON), &out.Participants); err != nil {
		return nil, err
	}
	out.PendingLegs = splitLegs(legs)
	return &out, nil
}

func joinLegs(legs []model.Leg) string {
	ss := make([]string, len(legs))
	for i, l := range legs {
		ss[i] = string(l)
	}
	return strings.Join(ss, ",")
}

func splitLegs(s string) []model.Leg {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]model.Leg, len(parts))
	for i, p := range parts {
		out[i] = model.Leg(p)
	}
	return out
}

// Package sqlite implements store.Store on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/slotbot-ai/slotbot/internal/model"
	"github.com/slotbot-ai/slotbot/internal/store"
)

// Open opens (or creates) a SQLite database at the given path with WAL
// journal mode for better read concurrency.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
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
    creation_time TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS turns (
    turn_id         TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    text            TEXT NOT NULL,
    ts              TIMESTAMP NOT NULL,
    intent          TEXT,
    descriptor_json TEXT,
    response        TEXT NOT NULL DEFAULT '',
    embedded        INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_turns_user_ts ON turns(user_id, ts DESC);
CREATE TABLE IF NOT EXISTS descriptors (
    descriptor_id     TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL,
    title             TEXT NOT NULL,
    start_time        TIMESTAMP NOT NULL,
    end_time          TIMESTAMP NOT NULL,
    modality          TEXT NOT NULL,
    location          TEXT NOT NULL DEFAULT '',
    participants_json TEXT NOT NULL DEFAULT '[]',
    calendar_event_id TEXT,
    task_id           TEXT,
    pending_legs      TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL,
    creation_time     TIMESTAMP NOT NULL,
    update_time       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_descriptors_user_status ON descriptors(user_id, status);
`

// New opens the database at path and ensures the schema exists.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return NewWithDB(db)
}

// NewWithDB allows wiring with an existing connection (used by the factory
// and tests).
func NewWithDB(db *sql.DB) (store.Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Users() store.Users             { return &users{db: s.db} }
func (s *sqliteStore) Turns() store.Turns             { return &turns{db: s.db} }
func (s *sqliteStore) Descriptors() store.Descriptors { return &descriptors{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) GetOrCreate(ctx context.Context, userID, defaultTZ string) (*model.User, error) {
	got, err := u.Get(ctx, userID)
	if err == nil {
		return got, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	now := time.Now().UTC()
	if _, err := u.db.ExecContext(ctx,
		`INSERT INTO users (user_id, time_zone, creation_time) VALUES (?,?,?)`,
		userID, defaultTZ, now); err != nil {
		return nil, err
	}
	return &model.User{UserID: userID, TimeZone: defaultTZ, CreationTime: now}, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	var out model.User
	row := u.db.QueryRowContext(ctx,
		`SELECT user_id, time_zone, creation_time FROM users WHERE user_id = ?`, userID)
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
        VALUES (?,?,?,?,?,?,?,?)`,
		out.TurnID, out.UserID, out.Text, out.Timestamp.UTC(), intent, descJSON, out.Response, out.Embedded)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *turns) ListRecent(ctx context.Context, userID string, limit int) ([]*model.Turn, error) {
	rows, err := t.db.QueryContext(ctx, `
        SELECT turn_id, user_id, text, ts, intent, descriptor_json, response, embedded
        FROM turns WHERE user_id = ? ORDER BY ts DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.Turn
	for rows.Next() {
		tr, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, tr)
	}
	return res, rows.Err()
}

func scanTurn(rows *sql.Rows) (*model.Turn, error) {
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
	return &out, nil
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
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
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
        UPDATE descriptors SET title=?, start_time=?, end_time=?, modality=?, location=?,
            participants_json=?, calendar_event_id=?, task_id=?, pending_legs=?, status=?, update_time=?
        WHERE user_id=? AND descriptor_id=?`,
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
        SELECT `+descriptorCols+` FROM descriptors WHERE user_id=? AND descriptor_id=?`,
		userID, descriptorID)
	return scanDescriptor(row)
}

func (d *descriptors) Open(ctx context.Context, userID string) (*model.MeetingDescriptor, error) {
	row := d.db.QueryRowContext(ctx, `
        SELECT `+descriptorCols+` FROM descriptors
        WHERE user_id=? AND status IN (?,?)
        ORDER BY update_time DESC LIMIT 1`,
		userID, string(model.StatusAwaitingClarification), string(model.StatusConfirmed))
	return scanDescriptor(row)
}

func (d *descriptors) ListScheduled(ctx context.Context, userID string, from, to time.Time) ([]*model.MeetingDescriptor, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT `+descriptorCols+` FROM descriptors
        WHERE user_id=? AND status=? AND start_time >= ? AND start_time < ?
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

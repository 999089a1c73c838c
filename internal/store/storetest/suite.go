// Package storetest provides a compliance suite run against every
// store.Store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/slotbot-ai/slotbot/internal/model"
	"github.com/slotbot-ai/slotbot/internal/store"
)

// Run exercises a minimal compliance suite against a store.Store
// implementation. makeStore must return a clean, isolated store.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	userID := "+1555" + uuid.New().String()[:8]

	// Users: create on first contact, stable afterwards.
	u, err := s.Users().GetOrCreate(ctx, userID, "Africa/Casablanca")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if u.TimeZone != "Africa/Casablanca" {
		t.Fatalf("unexpected timezone: %s", u.TimeZone)
	}
	again, err := s.Users().GetOrCreate(ctx, userID, "UTC")
	if err != nil || again.TimeZone != "Africa/Casablanca" {
		t.Fatalf("GetOrCreate second call: tz=%v err=%v", again, err)
	}
	if _, err := s.Users().Get(ctx, "absent"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Descriptors
	start := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)
	d, err := s.Descriptors().Create(ctx, &model.MeetingDescriptor{
		UserID:       userID,
		Title:        "Design review",
		Start:        start,
		End:          start.Add(30 * time.Minute),
		Modality:     model.ModalityVirtual,
		Participants: []string{"ana@example.test"},
		PendingLegs:  []model.Leg{model.LegCalendar, model.LegTask},
		Status:       model.StatusAwaitingClarification,
	})
	if err != nil {
		t.Fatalf("Create descriptor: %v", err)
	}
	if d.DescriptorID == "" {
		t.Fatal("empty descriptor id")
	}

	open, err := s.Descriptors().Open(ctx, userID)
	if err != nil || open.DescriptorID != d.DescriptorID {
		t.Fatalf("Open: got=%v err=%v", open, err)
	}

	// Transition to scheduled and verify Open no longer returns it.
	evID := "cal-evt-1"
	d.CalendarEventID = &evID
	d.PendingLegs = nil
	d.Status = model.StatusScheduled
	if err := s.Descriptors().Update(ctx, d); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := s.Descriptors().Open(ctx, userID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected no open descriptor, got %v", err)
	}

	got, err := s.Descriptors().GetByID(ctx, userID, d.DescriptorID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.CalendarEventID == nil || *got.CalendarEventID != evID {
		t.Fatalf("calendar event id not persisted: %+v", got)
	}
	if len(got.Participants) != 1 || got.Participants[0] != "ana@example.test" {
		t.Fatalf("participants not round-tripped: %v", got.Participants)
	}
	if !got.Start.UTC().Equal(start) {
		t.Fatalf("start mismatch: %v != %v", got.Start, start)
	}

	listed, err := s.Descriptors().ListScheduled(ctx, userID, start.Add(-time.Hour), start.Add(time.Hour))
	if err != nil || len(listed) != 1 {
		t.Fatalf("ListScheduled: n=%d err=%v", len(listed), err)
	}
	// Range is [from, to): a window ending at start excludes it.
	listed, err = s.Descriptors().ListScheduled(ctx, userID, start.Add(-time.Hour), start)
	if err != nil || len(listed) != 0 {
		t.Fatalf("ListScheduled exclusive bound: n=%d err=%v", len(listed), err)
	}

	// Updating a missing descriptor is an error.
	if err := s.Descriptors().Update(ctx, &model.MeetingDescriptor{UserID: userID, DescriptorID: "missing"}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on missing update, got %v", err)
	}

	// Turns
	intent := model.IntentSchedule
	turn, err := s.Turns().Create(ctx, &model.Turn{
		UserID:     userID,
		Text:       "let's meet tuesday at 3pm",
		Timestamp:  time.Now().UTC(),
		Intent:     &intent,
		Descriptor: got,
		Response:   "Scheduled.",
		Embedded:   true,
	})
	if err != nil {
		t.Fatalf("Create turn: %v", err)
	}
	if turn.TurnID == "" {
		t.Fatal("empty turn id")
	}
	recent, err := s.Turns().ListRecent(ctx, userID, 10)
	if err != nil || len(recent) != 1 {
		t.Fatalf("ListRecent: n=%d err=%v", len(recent), err)
	}
	if recent[0].Intent == nil || *recent[0].Intent != model.IntentSchedule {
		t.Fatalf("intent not round-tripped: %+v", recent[0])
	}
	if recent[0].Descriptor == nil || recent[0].Descriptor.DescriptorID != d.DescriptorID {
		t.Fatalf("descriptor snapshot not round-tripped: %+v", recent[0].Descriptor)
	}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbot-ai/slotbot/internal/adapters"
	"github.com/slotbot-ai/slotbot/internal/config"
	"github.com/slotbot-ai/slotbot/internal/memwriter"
	"github.com/slotbot-ai/slotbot/internal/model"
	"github.com/slotbot-ai/slotbot/internal/store"
	"github.com/slotbot-ai/slotbot/internal/store/memory"
	"github.com/slotbot-ai/slotbot/internal/understand"
)

func strPtr(s string) *string { return &s }

// Wednesday.
var testNow = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

type fakeUnderstander struct {
	mu      sync.Mutex
	results []*model.IntentResult
	out     adapters.Outcome
	active  int32
	maxSeen int32
}

func (f *fakeUnderstander) Classify(ctx context.Context, req understand.Request) (*model.IntentResult, adapters.Outcome, error) {
	cur := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		max := atomic.LoadInt32(&f.maxSeen)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxSeen, max, cur) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)

	if f.out != adapters.OutcomeSuccess {
		return nil, f.out, errors.New("llm down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return &model.IntentResult{Intent: model.IntentUnknown, Confidence: 0.1}, adapters.OutcomeSuccess, nil
	}
	res := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return res, adapters.OutcomeSuccess, nil
}

type fakeCalendar struct {
	mu          sync.Mutex
	creates     int
	updates     int
	deletes     int
	failCreates int // first N creates fail transiently
	failDeletes int
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, d *model.MeetingDescriptor) (string, adapters.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreates > 0 {
		f.failCreates--
		return "", adapters.OutcomeTransient, errors.New("calendar 503")
	}
	return fmt.Sprintf("evt-%d", f.creates), adapters.OutcomeSuccess, nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, eventID string, d *model.MeetingDescriptor) (adapters.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return adapters.OutcomeSuccess, nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, eventID string) (adapters.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	if f.failDeletes > 0 {
		f.failDeletes--
		return adapters.OutcomeTransient, errors.New("calendar 503")
	}
	return adapters.OutcomeSuccess, nil
}

type fakeTasks struct {
	mu          sync.Mutex
	creates     int
	updates     int
	deletes     int
	failCreates int
	failUpdates int
	lastTaskID  string
}

func (f *fakeTasks) CreateTask(ctx context.Context, d *model.MeetingDescriptor) (string, adapters.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreates > 0 {
		f.failCreates--
		return "", adapters.OutcomeTransient, errors.New("tasks 503")
	}
	return fmt.Sprintf("task-%d", f.creates), adapters.OutcomeSuccess, nil
}

func (f *fakeTasks) UpdateTask(ctx context.Context, taskID string, d *model.MeetingDescriptor) (adapters.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	f.lastTaskID = taskID
	if f.failUpdates > 0 {
		f.failUpdates--
		return adapters.OutcomeTransient, errors.New("tasks 503")
	}
	return adapters.OutcomeSuccess, nil
}

func (f *fakeTasks) DeleteTask(ctx context.Context, taskID string) (adapters.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return adapters.OutcomeSuccess, nil
}

type harness struct {
	engine   *Engine
	store    store.Store
	und      *fakeUnderstander
	calendar *fakeCalendar
	tasks    *fakeTasks
}

func newHarness(t *testing.T, results ...*model.IntentResult) *harness {
	t.Helper()
	cfg := config.NewForTesting()
	cfg.DispatchMaxAttempts = 1

	s := memory.New()
	und := &fakeUnderstander{results: results, out: adapters.OutcomeSuccess}
	cal := &fakeCalendar{}
	tasks := &fakeTasks{}
	eng := New(Deps{
		Store:        s,
		Understander: und,
		Calendar:     cal,
		Tasks:        tasks,
		Memory:       memwriter.New(s, nil, nil, zerolog.Nop()),
		Config:       cfg,
		Logger:       zerolog.Nop(),
	})
	return &harness{engine: eng, store: s, und: und, calendar: cal, tasks: tasks}
}

func scheduleResult(slots model.Slots) *model.IntentResult {
	return &model.IntentResult{Intent: model.IntentSchedule, Slots: slots, Confidence: 0.9}
}

func TestHandleMessage_ScheduleHappyPath(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, scheduleResult(model.Slots{
		Title: strPtr("Budget review"),
		Date:  strPtr("2026-09-01"),
		Time:  strPtr("14:00"),
	}))

	resp, err := h.engine.HandleMessage(ctx, "u1", "schedule budget review sept 1 at 2pm", testNow)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Scheduled")
	require.NotNil(t, resp.Descriptor)
	assert.Equal(t, model.StatusScheduled, resp.Descriptor.Status)
	assert.NotNil(t, resp.Descriptor.CalendarEventID)
	assert.NotNil(t, resp.Descriptor.TaskID)
	assert.Empty(t, resp.Descriptor.PendingLegs)
	assert.Equal(t, 1, h.calendar.creates)
	assert.Equal(t, 1, h.tasks.creates)

	stored, err := h.store.Descriptors().GetByID(ctx, "u1", resp.Descriptor.DescriptorID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, stored.Status)

	turns, err := h.store.Turns().ListRecent(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.NotNil(t, turns[0].Intent)
	assert.Equal(t, model.IntentSchedule, *turns[0].Intent)
}

func TestHandleMessage_ClarificationThenContinuation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		scheduleResult(model.Slots{Title: strPtr("Sync"), Date: strPtr("tomorrow")}),
		scheduleResult(model.Slots{Time: strPtr("15:00")}),
	)

	resp, err := h.engine.HandleMessage(ctx, "u1", "set up a sync tomorrow", testNow)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "I still need")
	require.NotNil(t, resp.Descriptor)
	draftID := resp.Descriptor.DescriptorID
	assert.Equal(t, model.StatusAwaitingClarification, resp.Descriptor.Status)
	assert.Equal(t, 0, h.calendar.creates)

	resp, err = h.engine.HandleMessage(ctx, "u1", "3pm works", testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Scheduled")
	require.NotNil(t, resp.Descriptor)
	assert.Equal(t, draftID, resp.Descriptor.DescriptorID)
	assert.Equal(t, "Sync", resp.Descriptor.Title)
	assert.Equal(t, 1, h.calendar.creates)
}

func TestHandleMessage_PartialFailureThenResume(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		scheduleResult(model.Slots{
			Title: strPtr("Budget review"),
			Date:  strPtr("2026-09-01"),
			Time:  strPtr("14:00"),
		}),
		&model.IntentResult{Intent: model.IntentUnknown, Confidence: 0.2},
	)
	h.tasks.failCreates = 1

	resp, err := h.engine.HandleMessage(ctx, "u1", "schedule it", testNow)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "didn't go through")
	require.NotNil(t, resp.Descriptor)
	assert.Equal(t, model.StatusConfirmed, resp.Descriptor.Status)
	require.NotNil(t, resp.Descriptor.CalendarEventID)
	assert.Nil(t, resp.Descriptor.TaskID)
	assert.Equal(t, []model.Leg{model.LegTask}, resp.Descriptor.PendingLegs)

	// next message resumes only the pending leg
	resp, err = h.engine.HandleMessage(ctx, "u1", "did that work?", testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Scheduled")
	assert.Equal(t, model.StatusScheduled, resp.Descriptor.Status)
	assert.Equal(t, 1, h.calendar.creates, "calendar leg must not be re-created")
	assert.Equal(t, 2, h.tasks.creates)
}

func TestHandleMessage_ReschedulePartialResumesAsUpdate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		scheduleResult(model.Slots{
			Title: strPtr("Sync"),
			Date:  strPtr("2026-09-01"),
			Time:  strPtr("14:00"),
		}),
		&model.IntentResult{Intent: model.IntentReschedule, Slots: model.Slots{Time: strPtr("16:00")}, Confidence: 0.9},
		&model.IntentResult{Intent: model.IntentUnknown, Confidence: 0.2},
	)

	resp, err := h.engine.HandleMessage(ctx, "u1", "schedule a sync sept 1 at 2pm", testNow)
	require.NoError(t, err)
	require.NotNil(t, resp.Descriptor)
	taskID := *resp.Descriptor.TaskID

	h.tasks.failUpdates = 1
	resp, err = h.engine.HandleMessage(ctx, "u1", "move it to 4pm", testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "didn't go through")
	assert.Equal(t, model.StatusConfirmed, resp.Descriptor.Status)
	assert.Equal(t, []model.Leg{model.LegTask}, resp.Descriptor.PendingLegs)

	// the stalled update leg is retried as an update of the stored id,
	// never re-created
	resp, err = h.engine.HandleMessage(ctx, "u1", "did it move?", testNow.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Scheduled")
	assert.Equal(t, model.StatusScheduled, resp.Descriptor.Status)
	assert.Equal(t, 1, h.tasks.creates, "pending update leg must not create a new task")
	assert.Equal(t, 2, h.tasks.updates)
	assert.Equal(t, taskID, h.tasks.lastTaskID)
	require.NotNil(t, resp.Descriptor.TaskID)
	assert.Equal(t, taskID, *resp.Descriptor.TaskID)
}

func TestHandleMessage_NewScheduleAfterPartialIsNotDropped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		scheduleResult(model.Slots{
			Title: strPtr("Budget review"),
			Date:  strPtr("2026-09-01"),
			Time:  strPtr("14:00"),
		}),
		scheduleResult(model.Slots{
			Title: strPtr("Design crit"),
			Date:  strPtr("2026-09-03"),
			Time:  strPtr("10:00"),
		}),
	)
	h.tasks.failCreates = 1

	resp, err := h.engine.HandleMessage(ctx, "u1", "schedule budget review sept 1 at 2pm", testNow)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "didn't go through")
	firstID := resp.Descriptor.DescriptorID

	resp, err = h.engine.HandleMessage(ctx, "u1", "also set up a design crit sept 3 at 10am", testNow.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, resp.Descriptor)
	assert.NotEqual(t, firstID, resp.Descriptor.DescriptorID, "new request must get its own descriptor")
	assert.Equal(t, "Design crit", resp.Descriptor.Title)
	assert.Equal(t, model.StatusScheduled, resp.Descriptor.Status)
	assert.Equal(t, 2, h.calendar.creates)

	first, err := h.store.Descriptors().GetByID(ctx, "u1", firstID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, first.Status, "pending leg must still be resumed")
	assert.Empty(t, first.PendingLegs)
}

func TestHandleMessage_SoftConflictAnnotatedNotBlocking(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		scheduleResult(model.Slots{
			Title: strPtr("Budget review"),
			Date:  strPtr("2026-09-01"),
			Time:  strPtr("14:00"),
		}),
		scheduleResult(model.Slots{
			Title: strPtr("Vendor call"),
			Date:  strPtr("2026-09-01"),
			Time:  strPtr("14:15"),
		}),
	)

	_, err := h.engine.HandleMessage(ctx, "u1", "schedule budget review sept 1 at 2pm", testNow)
	require.NoError(t, err)

	resp, err := h.engine.HandleMessage(ctx, "u1", "vendor call sept 1 at 2:15", testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, resp.Descriptor.Status, "overlap is advisory, not blocking")
	assert.Contains(t, resp.Text, "overlaps")
	require.Len(t, resp.Conflicts, 1)
	assert.Contains(t, resp.Conflicts[0], "Budget review")
	assert.Equal(t, 2, h.calendar.creates)
}

func TestHandleMessage_UnderstandingDown(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.und.out = adapters.OutcomeTransient

	resp, err := h.engine.HandleMessage(ctx, "u1", "anything", testNow)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "trouble understanding")

	turns, err := h.store.Turns().ListRecent(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Nil(t, turns[0].Intent)
}

func seedScheduled(t *testing.T, s store.Store, userID, id, title string, start time.Time) *model.MeetingDescriptor {
	t.Helper()
	evt, task := "evt-"+id, "task-"+id
	d := &model.MeetingDescriptor{
		DescriptorID:    id,
		UserID:          userID,
		Title:           title,
		Start:           start,
		End:             start.Add(30 * time.Minute),
		Modality:        model.ModalityVirtual,
		CalendarEventID: &evt,
		TaskID:          &task,
		Status:          model.StatusScheduled,
		CreationTime:    start.Add(-time.Hour),
		UpdateTime:      start.Add(-time.Hour),
	}
	_, err := s.Descriptors().Create(context.Background(), d)
	require.NoError(t, err)
	return d
}

func TestHandleMessage_CancelSingleUpcoming(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &model.IntentResult{Intent: model.IntentCancel, Confidence: 0.9})
	seedScheduled(t, h.store, "u1", "d1", "Budget review", testNow.Add(24*time.Hour))

	resp, err := h.engine.HandleMessage(ctx, "u1", "cancel my meeting", testNow)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Cancelled")
	assert.Equal(t, 1, h.calendar.deletes)
	assert.Equal(t, 1, h.tasks.deletes)

	stored, err := h.store.Descriptors().GetByID(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
}

func TestHandleMessage_CancelAmbiguousListsUpcoming(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &model.IntentResult{Intent: model.IntentCancel, Confidence: 0.9})
	seedScheduled(t, h.store, "u1", "d1", "Budget review", testNow.Add(24*time.Hour))
	seedScheduled(t, h.store, "u1", "d2", "Standup", testNow.Add(48*time.Hour))

	resp, err := h.engine.HandleMessage(ctx, "u1", "cancel my meeting", testNow)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Which meeting")
	assert.Contains(t, resp.Text, "Budget review")
	assert.Contains(t, resp.Text, "Standup")
	assert.Equal(t, 0, h.calendar.deletes)
}

func TestHandleMessage_CancelByTitle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &model.IntentResult{
		Intent: model.IntentCancel,
		Slots:  model.Slots{Title: strPtr("standup")},
	})
	seedScheduled(t, h.store, "u1", "d1", "Budget review", testNow.Add(24*time.Hour))
	seedScheduled(t, h.store, "u1", "d2", "Standup", testNow.Add(48*time.Hour))

	resp, err := h.engine.HandleMessage(ctx, "u1", "cancel the standup", testNow)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Cancelled")

	stored, err := h.store.Descriptors().GetByID(ctx, "u1", "d2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
}

func TestHandleMessage_Reschedule(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &model.IntentResult{
		Intent: model.IntentReschedule,
		Slots:  model.Slots{Time: strPtr("16:00")},
	})
	seedScheduled(t, h.store, "u1", "d1", "Budget review", time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC))

	resp, err := h.engine.HandleMessage(ctx, "u1", "move it to 4pm", testNow)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Moved")
	assert.Equal(t, 1, h.calendar.updates)
	assert.Equal(t, 1, h.tasks.updates)
	assert.Equal(t, 0, h.calendar.creates)

	stored, err := h.store.Descriptors().GetByID(ctx, "u1", "d1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, stored.Status)
	assert.Equal(t, time.Date(2026, 9, 1, 16, 0, 0, 0, time.UTC), stored.Start.UTC())
}

func TestHandleMessage_QueryListsWeekAhead(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &model.IntentResult{Intent: model.IntentQuery, Confidence: 0.9})
	seedScheduled(t, h.store, "u1", "d1", "Budget review", testNow.Add(24*time.Hour))
	seedScheduled(t, h.store, "u1", "far", "Offsite", testNow.Add(30*24*time.Hour))

	resp, err := h.engine.HandleMessage(ctx, "u1", "what do I have this week?", testNow)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Budget review")
	assert.NotContains(t, resp.Text, "Offsite")
}

func TestHandleMessage_QueryEmpty(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &model.IntentResult{Intent: model.IntentQuery, Confidence: 0.9})

	resp, err := h.engine.HandleMessage(ctx, "u1", "what's on?", testNow)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "nothing scheduled")
}

func TestHandleMessage_ExpiredDraftNotContinued(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, scheduleResult(model.Slots{
		Title: strPtr("New thing"),
		Date:  strPtr("2026-09-03"),
		Time:  strPtr("10:00"),
	}))

	stale := &model.MeetingDescriptor{
		DescriptorID: "old-draft",
		UserID:       "u1",
		Title:        "Old thing",
		Status:       model.StatusAwaitingClarification,
		CreationTime: testNow.Add(-30 * time.Hour),
		UpdateTime:   testNow.Add(-30 * time.Hour),
	}
	_, err := h.store.Descriptors().Create(ctx, stale)
	require.NoError(t, err)

	resp, err := h.engine.HandleMessage(ctx, "u1", "schedule new thing", testNow)
	require.NoError(t, err)
	require.NotNil(t, resp.Descriptor)
	assert.NotEqual(t, "old-draft", resp.Descriptor.DescriptorID)
	assert.Equal(t, "New thing", resp.Descriptor.Title)

	old, err := h.store.Descriptors().GetByID(ctx, "u1", "old-draft")
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuperseded, old.Status)
}

func TestHandleMessage_SameUserSerialized(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &model.IntentResult{Intent: model.IntentQuery, Confidence: 0.9})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.HandleMessage(ctx, "u1", "what's on?", testNow)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.und.maxSeen))
}

func TestHandleMessage_DistinctUsersParallel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &model.IntentResult{Intent: model.IntentQuery, Confidence: 0.9})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := h.engine.HandleMessage(ctx, fmt.Sprintf("u%d", n), "what's on?", testNow)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	// with four distinct users at least two turns should have overlapped
	assert.GreaterOrEqual(t, atomic.LoadInt32(&h.und.maxSeen), int32(2))
}

func TestHandleMessage_UnknownIntentNoDraft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, &model.IntentResult{Intent: model.IntentUnknown, Confidence: 0.2})

	resp, err := h.engine.HandleMessage(ctx, "u1", "hi", testNow)
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "I can schedule")
}

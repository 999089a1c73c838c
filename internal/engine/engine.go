// Package engine orchestrates one inbound message end to end: context
// retrieval, understanding, slot resolution, external dispatch, and memory
// write-back.
package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slotbot-ai/slotbot/internal/adapters"
	"github.com/slotbot-ai/slotbot/internal/config"
	"github.com/slotbot-ai/slotbot/internal/contextstore"
	"github.com/slotbot-ai/slotbot/internal/embeddings"
	"github.com/slotbot-ai/slotbot/internal/memwriter"
	"github.com/slotbot-ai/slotbot/internal/model"
	"github.com/slotbot-ai/slotbot/internal/resolver"
	"github.com/slotbot-ai/slotbot/internal/store"
	"github.com/slotbot-ai/slotbot/internal/understand"
)

// queryHorizon is the default lookahead for query turns with no date slot.
const queryHorizon = 7 * 24 * time.Hour

// conflictHorizon bounds how far out existing meetings are loaded for
// overlap checks and target matching.
const conflictHorizon = 90 * 24 * time.Hour

// Calendar is the calendar leg of dispatch.
type Calendar interface {
	CreateEvent(ctx context.Context, d *model.MeetingDescriptor) (string, adapters.Outcome, error)
	UpdateEvent(ctx context.Context, eventID string, d *model.MeetingDescriptor) (adapters.Outcome, error)
	DeleteEvent(ctx context.Context, eventID string) (adapters.Outcome, error)
}

// Tasks is the reminder leg of dispatch.
type Tasks interface {
	CreateTask(ctx context.Context, d *model.MeetingDescriptor) (string, adapters.Outcome, error)
	UpdateTask(ctx context.Context, taskID string, d *model.MeetingDescriptor) (adapters.Outcome, error)
	DeleteTask(ctx context.Context, taskID string) (adapters.Outcome, error)
}

// Deps are the collaborators the engine orchestrates. Index and Embedder may
// be nil; context retrieval then degrades to an empty window.
type Deps struct {
	Store        store.Store
	Index        contextstore.Index
	Embedder     embeddings.Provider
	Understander understand.Understander
	Calendar     Calendar
	Tasks        Tasks
	Memory       *memwriter.Writer
	Config       *config.Config
	Logger       zerolog.Logger
}

// Engine handles messages. Safe for concurrent use; same-user turns are
// serialized by a per-user guard held from context retrieval through memory
// write-back.
type Engine struct {
	deps  Deps
	locks *userLocks

	contextPolicy  adapters.Policy
	dispatchPolicy adapters.Policy
}

func New(deps Deps) *Engine {
	return &Engine{
		deps:           deps,
		locks:          newUserLocks(),
		contextPolicy:  adapters.DefaultPolicy(deps.Config.ContextMaxAttempts),
		dispatchPolicy: adapters.DefaultPolicy(deps.Config.DispatchMaxAttempts),
	}
}

// HandleMessage processes one inbound message and returns the reply. A nil
// error with a failure-worded Response is the normal shape for handled
// faults; a non-nil error means the turn could not be processed at all.
func (e *Engine) HandleMessage(ctx context.Context, userID, text string, ts time.Time) (*Response, error) {
	release, err := e.locks.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	log := e.deps.Logger.With().Str("userId", userID).Logger()

	user, err := e.deps.Store.Users().GetOrCreate(ctx, userID, e.deps.Config.DefaultTimezone)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(user.TimeZone)
	if err != nil {
		loc = time.UTC
	}

	window := e.loadContext(ctx, userID, text, log)

	result, out, uerr := e.deps.Understander.Classify(ctx, understand.Request{
		Text:     text,
		Window:   window,
		Now:      ts,
		Timezone: user.TimeZone,
	})
	if out != adapters.OutcomeSuccess || result == nil {
		log.Error().Err(uerr).Str("outcome", out.String()).Msg("understanding unavailable")
		resp := renderUnderstandingDown()
		e.memorize(ctx, userID, text, ts, nil, resp, log)
		return resp, nil
	}
	log.Debug().Str("intent", string(result.Intent)).Float64("confidence", result.Confidence).Msg("message understood")

	resp, err := e.act(ctx, user, result, ts, loc, log)
	if err != nil {
		return nil, err
	}

	intent := result.Intent
	e.memorize(ctx, userID, text, ts, &intent, resp, log)
	return resp, nil
}

// act routes a classified turn. An open draft captures schedule and unknown
// intents as a continuation of the same draft; a confirmed descriptor with
// pending legs resumes its dispatch instead of starting anything new.
func (e *Engine) act(ctx context.Context, user *model.User, result *model.IntentResult, ts time.Time, loc *time.Location, log zerolog.Logger) (*Response, error) {
	open := e.openDescriptor(ctx, user.UserID, ts, log)

	if open != nil && open.Status == model.StatusConfirmed &&
		(result.Intent == model.IntentSchedule || result.Intent == model.IntentUnknown) {
		resumed, err := e.resumeDispatch(ctx, open, loc, log)
		if err != nil {
			return nil, err
		}
		// A schedule turn that carries its own slots is a new request, not
		// just a nudge; handle it after settling the pending legs.
		if result.Intent != model.IntentSchedule || slotsEmpty(result.Slots) {
			return resumed, nil
		}
		resp, err := e.handleSchedule(ctx, user, result.Slots, nil, ts, loc, log)
		if err != nil {
			return nil, err
		}
		resp.Text = resumed.Text + " " + resp.Text
		return resp, nil
	}

	var prior *model.MeetingDescriptor
	intent := result.Intent
	if open != nil && open.Status == model.StatusAwaitingClarification &&
		(intent == model.IntentSchedule || intent == model.IntentUnknown) {
		prior = open
		intent = model.IntentSchedule
	}

	switch intent {
	case model.IntentSchedule:
		return e.handleSchedule(ctx, user, result.Slots, prior, ts, loc, log)
	case model.IntentReschedule:
		return e.handleReschedule(ctx, user, result.Slots, ts, loc, log)
	case model.IntentCancel:
		return e.handleCancel(ctx, user, result.Slots, ts, loc, log)
	case model.IntentQuery:
		return e.handleQuery(ctx, user, result.Slots, ts, loc)
	default:
		return renderUnknown(), nil
	}
}

// openDescriptor returns the user's open draft or pending dispatch, retiring
// drafts older than the TTL.
func (e *Engine) openDescriptor(ctx context.Context, userID string, ts time.Time, log zerolog.Logger) *model.MeetingDescriptor {
	open, err := e.deps.Store.Descriptors().Open(ctx, userID)
	if err != nil {
		return nil
	}
	if open.Status == model.StatusAwaitingClarification && ts.Sub(open.UpdateTime) > e.deps.Config.DraftTTL() {
		open.Status = model.StatusSuperseded
		open.UpdateTime = ts
		if uerr := e.deps.Store.Descriptors().Update(ctx, open); uerr != nil {
			log.Warn().Err(uerr).Str("descriptorId", open.DescriptorID).Msg("failed to retire expired draft")
		}
		return nil
	}
	return open
}

func (e *Engine) handleSchedule(ctx context.Context, user *model.User, slots model.Slots, prior *model.MeetingDescriptor, ts time.Time, loc *time.Location, log zerolog.Logger) (*Response, error) {
	if prior == nil && slotsEmpty(slots) {
		return renderUnknown(), nil
	}

	existing, err := e.deps.Store.Descriptors().ListScheduled(ctx, user.UserID, ts, ts.Add(conflictHorizon))
	if err != nil {
		return nil, err
	}

	res, err := resolver.Resolve(resolver.Input{
		Intent:          model.IntentSchedule,
		Slots:           slots,
		Prior:           prior,
		Existing:        existing,
		Now:             ts,
		Location:        loc,
		DefaultDuration: e.deps.Config.DefaultDuration(),
	})
	if err != nil {
		log.Debug().Err(err).Msg("slot resolution rejected input")
		return &Response{Text: "I couldn't make sense of that date or time. When should the meeting be?"}, nil
	}

	d := res.Descriptor
	d.UserID = user.UserID

	if len(res.Missing) > 0 {
		d.Status = model.StatusAwaitingClarification
		if err := e.persistDescriptor(ctx, d, prior != nil); err != nil {
			return nil, err
		}
		return renderClarification(d, res.Missing), nil
	}

	d.Status = model.StatusConfirmed
	d.PendingLegs = []model.Leg{model.LegCalendar, model.LegTask}
	if err := e.persistDescriptor(ctx, d, prior != nil); err != nil {
		return nil, err
	}

	complete, err := e.dispatchPending(ctx, d, log)
	if err != nil {
		return nil, err
	}
	if !complete {
		return renderPartial(d, loc), nil
	}
	return renderScheduled(d, res.Conflicts, loc), nil
}

func (e *Engine) handleReschedule(ctx context.Context, user *model.User, slots model.Slots, ts time.Time, loc *time.Location, log zerolog.Logger) (*Response, error) {
	target, upcoming, err := e.findTarget(ctx, user.UserID, slots, ts)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return renderWhichMeeting("move", upcoming, loc), nil
	}

	res, rerr := resolver.Resolve(resolver.Input{
		Intent:          model.IntentReschedule,
		Slots:           slots,
		Prior:           target,
		Existing:        upcoming,
		Now:             ts,
		Location:        loc,
		DefaultDuration: e.deps.Config.DefaultDuration(),
	})
	if rerr != nil {
		log.Debug().Err(rerr).Msg("slot resolution rejected input")
		return &Response{Text: "I couldn't make sense of that date or time. When should it move to?"}, nil
	}
	if len(res.Missing) > 0 {
		return renderClarification(target, res.Missing), nil
	}

	d := res.Descriptor
	d.Status = model.StatusConfirmed
	d.PendingLegs = updateLegs(d)
	if err := e.deps.Store.Descriptors().Update(ctx, d); err != nil {
		return nil, err
	}

	complete, err := e.dispatchPending(ctx, d, log)
	if err != nil {
		return nil, err
	}
	if !complete {
		return renderPartial(d, loc), nil
	}
	return renderRescheduled(d, loc), nil
}

func (e *Engine) handleCancel(ctx context.Context, user *model.User, slots model.Slots, ts time.Time, loc *time.Location, log zerolog.Logger) (*Response, error) {
	target, upcoming, err := e.findTarget(ctx, user.UserID, slots, ts)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return renderWhichMeeting("cancel", upcoming, loc), nil
	}

	if target.CalendarEventID != nil {
		out, derr := adapters.Retry(ctx, e.dispatchPolicy, func(ctx context.Context) (adapters.Outcome, error) {
			return e.deps.Calendar.DeleteEvent(ctx, *target.CalendarEventID)
		})
		if out != adapters.OutcomeSuccess {
			log.Warn().Err(derr).Str("descriptorId", target.DescriptorID).Msg("calendar delete failed")
			return &Response{Text: "I couldn't reach your calendar to cancel just now. Please try again in a bit.", Descriptor: target}, nil
		}
	}
	if target.TaskID != nil {
		out, derr := adapters.Retry(ctx, e.dispatchPolicy, func(ctx context.Context) (adapters.Outcome, error) {
			return e.deps.Tasks.DeleteTask(ctx, *target.TaskID)
		})
		if out != adapters.OutcomeSuccess {
			log.Warn().Err(derr).Str("descriptorId", target.DescriptorID).Msg("task delete failed")
			return &Response{Text: "The calendar entry is gone, but I couldn't remove the reminder yet. Please try again in a bit.", Descriptor: target}, nil
		}
	}

	target.Status = model.StatusCancelled
	target.PendingLegs = nil
	target.UpdateTime = ts
	if err := e.deps.Store.Descriptors().Update(ctx, target); err != nil {
		return nil, err
	}
	return renderCancelled(target, loc), nil
}

func (e *Engine) handleQuery(ctx context.Context, user *model.User, slots model.Slots, ts time.Time, loc *time.Location) (*Response, error) {
	from, to := ts, ts.Add(queryHorizon)
	if slots.Date != nil {
		if day, err := resolver.ResolveDate(*slots.Date, ts, loc); err == nil {
			from, to = day, day.AddDate(0, 0, 1)
		}
	}
	meetings, err := e.deps.Store.Descriptors().ListScheduled(ctx, user.UserID, from, to)
	if err != nil {
		return nil, err
	}
	return renderQuery(meetings, loc), nil
}

// findTarget picks the descriptor a cancel or reschedule refers to. A title
// slot narrows by case-insensitive substring; with no title, a single
// upcoming meeting is unambiguous. Anything else needs clarification.
func (e *Engine) findTarget(ctx context.Context, userID string, slots model.Slots, ts time.Time) (*model.MeetingDescriptor, []*model.MeetingDescriptor, error) {
	upcoming, err := e.deps.Store.Descriptors().ListScheduled(ctx, userID, ts, ts.Add(conflictHorizon))
	if err != nil {
		return nil, nil, err
	}
	if slots.Title != nil {
		needle := strings.ToLower(*slots.Title)
		var matches []*model.MeetingDescriptor
		for _, d := range upcoming {
			if strings.Contains(strings.ToLower(d.Title), needle) {
				matches = append(matches, d)
			}
		}
		if len(matches) == 1 {
			return matches[0], upcoming, nil
		}
		if len(matches) > 1 {
			return nil, matches, nil
		}
	}
	if len(upcoming) == 1 {
		return upcoming[0], upcoming, nil
	}
	return nil, upcoming, nil
}

// resumeDispatch retries only the legs still pending on a confirmed
// descriptor. Legs that already succeeded keep their recorded ids and are
// never re-created; a pending leg with a recorded id (a stalled reschedule)
// is re-attempted as an update of that id.
func (e *Engine) resumeDispatch(ctx context.Context, d *model.MeetingDescriptor, loc *time.Location, log zerolog.Logger) (*Response, error) {
	log.Info().Str("descriptorId", d.DescriptorID).Msg("resuming pending dispatch")
	complete, err := e.dispatchPending(ctx, d, log)
	if err != nil {
		return nil, err
	}
	if !complete {
		return renderPartial(d, loc), nil
	}
	return renderScheduled(d, nil, loc), nil
}

// dispatchPending clears the legs still pending on d, persisting after each
// so a crash or failure never loses a succeeded leg's id. A pending leg that
// already has a recorded external id is re-attempted as an update of that id,
// never re-created. Returns true when every leg cleared and d is scheduled.
func (e *Engine) dispatchPending(ctx context.Context, d *model.MeetingDescriptor, log zerolog.Logger) (bool, error) {
	if d.LegPending(model.LegCalendar) {
		if !e.clearCalendarLeg(ctx, d, log) {
			return false, e.deps.Store.Descriptors().Update(ctx, d)
		}
		if uerr := e.deps.Store.Descriptors().Update(ctx, d); uerr != nil {
			return false, uerr
		}
	}

	if d.LegPending(model.LegTask) {
		if !e.clearTaskLeg(ctx, d, log) {
			return false, e.deps.Store.Descriptors().Update(ctx, d)
		}
		if uerr := e.deps.Store.Descriptors().Update(ctx, d); uerr != nil {
			return false, uerr
		}
	}

	d.Status = model.StatusScheduled
	return true, e.deps.Store.Descriptors().Update(ctx, d)
}

func (e *Engine) clearCalendarLeg(ctx context.Context, d *model.MeetingDescriptor, log zerolog.Logger) bool {
	if d.CalendarEventID != nil {
		out, err := adapters.Retry(ctx, e.dispatchPolicy, func(ctx context.Context) (adapters.Outcome, error) {
			return e.deps.Calendar.UpdateEvent(ctx, *d.CalendarEventID, d)
		})
		if out != adapters.OutcomeSuccess {
			log.Warn().Err(err).Str("outcome", out.String()).Str("descriptorId", d.DescriptorID).Msg("calendar update failed")
			return false
		}
	} else {
		var eventID string
		out, err := adapters.Retry(ctx, e.dispatchPolicy, func(ctx context.Context) (adapters.Outcome, error) {
			var o adapters.Outcome
			var e2 error
			eventID, o, e2 = e.deps.Calendar.CreateEvent(ctx, d)
			return o, e2
		})
		if out != adapters.OutcomeSuccess {
			log.Warn().Err(err).Str("outcome", out.String()).Str("descriptorId", d.DescriptorID).Msg("calendar leg failed")
			return false
		}
		d.CalendarEventID = &eventID
	}
	d.ClearLeg(model.LegCalendar)
	return true
}

func (e *Engine) clearTaskLeg(ctx context.Context, d *model.MeetingDescriptor, log zerolog.Logger) bool {
	if d.TaskID != nil {
		out, err := adapters.Retry(ctx, e.dispatchPolicy, func(ctx context.Context) (adapters.Outcome, error) {
			return e.deps.Tasks.UpdateTask(ctx, *d.TaskID, d)
		})
		if out != adapters.OutcomeSuccess {
			log.Warn().Err(err).Str("outcome", out.String()).Str("descriptorId", d.DescriptorID).Msg("task update failed")
			return false
		}
	} else {
		var taskID string
		out, err := adapters.Retry(ctx, e.dispatchPolicy, func(ctx context.Context) (adapters.Outcome, error) {
			var o adapters.Outcome
			var e2 error
			taskID, o, e2 = e.deps.Tasks.CreateTask(ctx, d)
			return o, e2
		})
		if out != adapters.OutcomeSuccess {
			log.Warn().Err(err).Str("outcome", out.String()).Str("descriptorId", d.DescriptorID).Msg("task leg failed")
			return false
		}
		d.TaskID = &taskID
	}
	d.ClearLeg(model.LegTask)
	return true
}

// updateLegs returns the legs a reschedule must touch: only those with a
// recorded external id.
func updateLegs(d *model.MeetingDescriptor) []model.Leg {
	var legs []model.Leg
	if d.CalendarEventID != nil {
		legs = append(legs, model.LegCalendar)
	}
	if d.TaskID != nil {
		legs = append(legs, model.LegTask)
	}
	return legs
}

func (e *Engine) persistDescriptor(ctx context.Context, d *model.MeetingDescriptor, exists bool) error {
	if exists {
		return e.deps.Store.Descriptors().Update(ctx, d)
	}
	_, err := e.deps.Store.Descriptors().Create(ctx, d)
	return err
}

// loadContext retrieves the user's context window. Failures degrade to an
// empty window; the turn proceeds without memory.
func (e *Engine) loadContext(ctx context.Context, userID, text string, log zerolog.Logger) model.ContextWindow {
	if e.deps.Index == nil {
		return nil
	}

	var vec []float32
	if e.deps.Embedder != nil {
		v, err := e.deps.Embedder.Embed(ctx, text)
		if err != nil {
			log.Warn().Err(err).Msg("query embedding failed, searching without vector")
		} else {
			vec = v
		}
	}

	var window model.ContextWindow
	out, err := adapters.Retry(ctx, e.contextPolicy, func(ctx context.Context) (adapters.Outcome, error) {
		w, serr := e.deps.Index.Search(ctx, userID, text, vec, e.deps.Config.ContextTopK)
		if serr != nil {
			return adapters.ClassifyErr(serr), serr
		}
		window = w
		return adapters.OutcomeSuccess, nil
	})
	if out != adapters.OutcomeSuccess {
		log.Warn().Err(err).Msg("context retrieval unavailable, proceeding with empty window")
		return nil
	}
	return window
}

// memorize records the finished turn. A failed write is logged but never
// changes the response already earned by the dispatch.
func (e *Engine) memorize(ctx context.Context, userID, text string, ts time.Time, intent *model.Intent, resp *Response, log zerolog.Logger) {
	turn := &model.Turn{
		TurnID:     uuid.New().String(),
		UserID:     userID,
		Text:       text,
		Timestamp:  ts,
		Intent:     intent,
		Descriptor: resp.Descriptor,
		Response:   resp.Text,
	}
	if err := e.deps.Memory.Write(ctx, turn); err != nil {
		log.Error().Err(err).Str("turnId", turn.TurnID).Msg("memory write failed")
	}
}

func slotsEmpty(s model.Slots) bool {
	return s.Title == nil && s.Date == nil && s.Time == nil && s.DurationMinutes == nil &&
		s.Modality == nil && s.Location == nil && len(s.Participants) == 0
}

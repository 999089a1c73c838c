// Package resolver merges extracted slots with prior conversation state into
// a complete meeting descriptor, or reports what is still missing.
package resolver

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slotbot-ai/slotbot/internal/model"
)

// Missing-field names surfaced in clarification prompts.
const (
	MissingStartTime = "start_time"
	MissingLocation  = "location"
)

// DefaultTitle is used when the message never names the meeting.
const DefaultTitle = "Meeting"

// Input carries everything resolution needs. Prior is the open draft being
// continued or the descriptor being rescheduled; when set, its fields back
// fill slots the new message did not mention. Existing holds the user's
// scheduled descriptors for conflict detection.
type Input struct {
	Intent          model.Intent
	Slots           model.Slots
	Prior           *model.MeetingDescriptor
	Existing        []*model.MeetingDescriptor
	Now             time.Time
	Location        *time.Location
	DefaultDuration time.Duration
}

// Result is the outcome of one resolution pass. Missing is non-empty when the
// descriptor cannot be dispatched yet; Conflicts are advisory overlaps with
// other scheduled meetings.
type Result struct {
	Descriptor *model.MeetingDescriptor
	Missing    []string
	Conflicts  []*model.MeetingDescriptor
}

// Resolve merges in.Slots over in.Prior into a descriptor and checks it for
// completeness and overlaps. Resolution never calls external services.
func Resolve(in Input) (*Result, error) {
	d := &model.MeetingDescriptor{
		DescriptorID: uuid.New().String(),
		Status:       model.StatusDraft,
		CreationTime: in.Now,
		UpdateTime:   in.Now,
	}
	if in.Prior != nil {
		prior := *in.Prior
		d = &prior
		d.UpdateTime = in.Now
	}

	d.Title = resolveTitle(in.Slots, in.Prior)
	if in.Slots.Location != nil {
		d.Location = *in.Slots.Location
	}
	d.Modality = resolveModality(in.Slots, in.Prior, d.Location)
	d.Participants = mergeParticipants(in.Slots.Participants, d.Participants)

	var missing []string
	parts, err := resolveStart(in)
	if err != nil {
		return nil, err
	}
	switch {
	case parts.haveDate && parts.haveTime:
		d.Start = time.Date(parts.day.Year(), parts.day.Month(), parts.day.Day(), parts.hour, parts.minute, 0, 0, in.Location)
		d.End = d.Start.Add(resolveDuration(in))
	case parts.haveDate:
		// Keep the resolved day on the draft so a follow-up that only
		// supplies a time completes it. A zero End marks the time unknown.
		missing = append(missing, MissingStartTime)
		d.Start = parts.day
		d.End = time.Time{}
	default:
		missing = append(missing, MissingStartTime)
	}

	if d.Modality == model.ModalityInPerson && d.Location == "" {
		missing = append(missing, MissingLocation)
	}

	res := &Result{Descriptor: d, Missing: missing}
	if len(missing) == 0 {
		res.Conflicts = findConflicts(d, in.Existing)
	}
	return res, nil
}

func resolveTitle(slots model.Slots, prior *model.MeetingDescriptor) string {
	if slots.Title != nil {
		return *slots.Title
	}
	if prior != nil && prior.Title != "" {
		return prior.Title
	}
	return DefaultTitle
}

// startParts is the outcome of start resolution split into its components, so
// a partially resolved start can still be carried on the draft.
type startParts struct {
	day          time.Time
	hour, minute int
	haveDate     bool
	haveTime     bool
}

// resolveStart computes the meeting start. A new date or time slot overrides
// the corresponding component of the prior start; the other component falls
// back to the prior start when one exists. A prior with a zero End carries a
// resolved day but no time yet.
func resolveStart(in Input) (startParts, error) {
	var parts startParts

	if in.Prior != nil && !in.Prior.Start.IsZero() {
		prev := in.Prior.Start.In(in.Location)
		parts.day = time.Date(prev.Year(), prev.Month(), prev.Day(), 0, 0, 0, 0, in.Location)
		parts.haveDate = true
		if !in.Prior.End.IsZero() {
			parts.hour, parts.minute = prev.Hour(), prev.Minute()
			parts.haveTime = true
		}
	}

	if in.Slots.Date != nil {
		resolved, err := ResolveDate(*in.Slots.Date, in.Now, in.Location)
		if err != nil {
			return startParts{}, err
		}
		parts.day = resolved
		parts.haveDate = true
	}
	if in.Slots.Time != nil {
		h, m, err := resolveTime(*in.Slots.Time)
		if err != nil {
			return startParts{}, err
		}
		parts.hour, parts.minute = h, m
		parts.haveTime = true
	}
	return parts, nil
}

func resolveDuration(in Input) time.Duration {
	if in.Slots.DurationMinutes != nil && *in.Slots.DurationMinutes > 0 {
		return time.Duration(*in.Slots.DurationMinutes) * time.Minute
	}
	if in.Prior != nil && !in.Prior.Start.IsZero() && in.Prior.End.After(in.Prior.Start) {
		return in.Prior.End.Sub(in.Prior.Start)
	}
	return in.DefaultDuration
}

// resolveModality applies the precedence: explicit keyword, then location
// implies in-person, then the prior descriptor, then virtual.
func resolveModality(slots model.Slots, prior *model.MeetingDescriptor, location string) model.Modality {
	if slots.Modality != nil {
		switch strings.ToLower(strings.TrimSpace(*slots.Modality)) {
		case "in-person", "in person", "inperson":
			return model.ModalityInPerson
		case "virtual", "online", "remote":
			return model.ModalityVirtual
		}
	}
	if location != "" {
		return model.ModalityInPerson
	}
	if prior != nil && prior.Modality != "" && prior.Modality != model.ModalityUnknown {
		return prior.Modality
	}
	return model.ModalityVirtual
}

func mergeParticipants(fresh, prior []string) []string {
	src := fresh
	if len(src) == 0 {
		src = prior
	}
	seen := make(map[string]struct{}, len(src))
	var out []string
	for _, p := range src {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key := strings.ToLower(p)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// findConflicts returns scheduled descriptors that intersect d on [Start, End),
// skipping d itself and anything cancelled or superseded.
func findConflicts(d *model.MeetingDescriptor, existing []*model.MeetingDescriptor) []*model.MeetingDescriptor {
	var conflicts []*model.MeetingDescriptor
	for _, other := range existing {
		if other.DescriptorID == d.DescriptorID {
			continue
		}
		switch other.Status {
		case model.StatusCancelled, model.StatusSuperseded:
			continue
		}
		if d.Overlaps(other) {
			conflicts = append(conflicts, other)
		}
	}
	return conflicts
}

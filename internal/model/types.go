package model

import (
	"time"
)

// Intent classifies the purpose of an inbound message.
type Intent string

const (
	IntentSchedule   Intent = "schedule"
	IntentReschedule Intent = "reschedule"
	IntentCancel     Intent = "cancel"
	IntentQuery      Intent = "query"
	IntentUnknown    Intent = "unknown"
)

// Modality describes how a meeting takes place.
type Modality string

const (
	ModalityVirtual  Modality = "virtual"
	ModalityInPerson Modality = "in-person"
	ModalityUnknown  Modality = "unknown"
)

// Status is the lifecycle state of a MeetingDescriptor.
//
// draft → awaiting_clarification → confirmed → scheduled,
// with cancelled and superseded as alternate terminals. A descriptor is
// `confirmed` only while at least one external leg is still pending; once
// every required leg has succeeded (or been skipped) it becomes `scheduled`.
type Status string

const (
	StatusDraft                 Status = "draft"
	StatusAwaitingClarification Status = "awaiting_clarification"
	StatusConfirmed             Status = "confirmed"
	StatusScheduled             Status = "scheduled"
	StatusCancelled             Status = "cancelled"
	StatusSuperseded            Status = "superseded"
)

// Leg names one of the external side effects belonging to a scheduling action.
type Leg string

const (
	LegCalendar Leg = "calendar"
	LegTask     Leg = "task"
)

// User is a chat participant, identified by phone number.
type User struct {
	UserID       string    `json:"userId"`
	TimeZone     string    `json:"timeZone"`
	CreationTime time.Time `json:"creationTime"`
}

// MeetingDescriptor is the canonical structured record of a meeting
// request and its external side effects.
type MeetingDescriptor struct {
	DescriptorID    string    `json:"descriptorId"`
	UserID          string    `json:"userId"`
	Title           string    `json:"title"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Modality        Modality  `json:"modality"`
	Location        string    `json:"location,omitempty"`
	Participants    []string  `json:"participants,omitempty"`
	CalendarEventID *string   `json:"calendarEventId,omitempty"`
	TaskID          *string   `json:"taskId,omitempty"`
	PendingLegs     []Leg     `json:"pendingLegs,omitempty"`
	Status          Status    `json:"status"`
	CreationTime    time.Time `json:"creationTime"`
	UpdateTime      time.Time `json:"updateTime"`
}

// LegPending reports whether the given leg is still awaiting dispatch.
func (d *MeetingDescriptor) LegPending(leg Leg) bool {
	for _, l := range d.PendingLegs {
		if l == leg {
			return true
		}
	}
	return false
}

// ClearLeg removes a leg from the pending set.
func (d *MeetingDescriptor) ClearLeg(leg Leg) {
	out := d.PendingLegs[:0]
	for _, l := range d.PendingLegs {
		if l != leg {
			out = append(out, l)
		}
	}
	d.PendingLegs = out
}

// Overlaps reports whether two descriptors intersect on [Start, End).
func (d *MeetingDescriptor) Overlaps(other *MeetingDescriptor) bool {
	return d.Start.Before(other.End) && other.Start.Before(d.End)
}

// Slots is the fixed schema of fields the understanding service can extract
// from a single message. Pointer fields are nil when the message did not
// mention them; string dates/times are kept raw so the resolver can apply the
// turn timestamp and user timezone.
type Slots struct {
	Title           *string  `json:"title,omitempty"`
	Date            *string  `json:"date,omitempty"` // "2006-01-02" or a relative expression
	Time            *string  `json:"time,omitempty"` // "15:04"
	DurationMinutes *int     `json:"durationMinutes,omitempty"`
	Modality        *string  `json:"modality,omitempty"` // "virtual" | "in-person"
	Location        *string  `json:"location,omitempty"`
	Participants    []string `json:"participants,omitempty"`
}

// IntentResult is the ephemeral output of the understanding adapter. It is
// folded into a Turn and never persisted on its own.
type IntentResult struct {
	Intent     Intent  `json:"intent"`
	Slots      Slots   `json:"slots"`
	Confidence float64 `json:"confidence"`
}

// Turn is one inbound/outbound message exchange. Immutable once written.
type Turn struct {
	TurnID     string             `json:"turnId"`
	UserID     string             `json:"userId"`
	Text       string             `json:"text"`
	Timestamp  time.Time          `json:"timestamp"`
	Intent     *Intent            `json:"intent,omitempty"`
	Descriptor *MeetingDescriptor `json:"descriptor,omitempty"`
	Response   string             `json:"response,omitempty"`
	Embedded   bool               `json:"embedded"`
}

// ContextSnippet is one retrieved prior turn with its similarity score.
type ContextSnippet struct {
	TurnID     string             `json:"turnId"`
	Text       string             `json:"text"`
	Descriptor *MeetingDescriptor `json:"descriptor,omitempty"`
	Score      float64            `json:"score"`
	Timestamp  time.Time          `json:"timestamp"`
}

// ContextWindow is the bounded, ranked set of snippets retrieved for a query:
// similarity descending, ties broken by recency descending.
type ContextWindow []ContextSnippet

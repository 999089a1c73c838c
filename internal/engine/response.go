package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/slotbot-ai/slotbot/internal/model"
	"github.com/slotbot-ai/slotbot/internal/resolver"
)

// Response is what the engine hands back for one inbound message.
type Response struct {
	Text        string                   `json:"text"`
	Descriptor  *model.MeetingDescriptor `json:"descriptor,omitempty"`
	Missing     []string                 `json:"missing,omitempty"`
	Conflicts   []string                 `json:"conflicts,omitempty"`
	PendingLegs []model.Leg              `json:"pendingLegs,omitempty"`
}

const timeFormat = "Mon Jan 2 at 3:04 PM"

func describeMeeting(d *model.MeetingDescriptor, loc *time.Location) string {
	s := fmt.Sprintf("%q on %s", d.Title, d.Start.In(loc).Format(timeFormat))
	if d.Location != "" {
		s += " at " + d.Location
	}
	return s
}

func renderScheduled(d *model.MeetingDescriptor, conflicts []*model.MeetingDescriptor, loc *time.Location) *Response {
	text := fmt.Sprintf("Scheduled %s.", describeMeeting(d, loc))
	var names []string
	for _, c := range conflicts {
		names = append(names, describeMeeting(c, loc))
	}
	if len(names) > 0 {
		text += " Heads up: this overlaps with " + strings.Join(names, "; ") + "."
	}
	return &Response{Text: text, Descriptor: d, Conflicts: names}
}

func renderRescheduled(d *model.MeetingDescriptor, loc *time.Location) *Response {
	return &Response{
		Text:       fmt.Sprintf("Moved %s.", describeMeeting(d, loc)),
		Descriptor: d,
	}
}

func renderCancelled(d *model.MeetingDescriptor, loc *time.Location) *Response {
	return &Response{
		Text:       fmt.Sprintf("Cancelled %s.", describeMeeting(d, loc)),
		Descriptor: d,
	}
}

func renderClarification(d *model.MeetingDescriptor, missing []string) *Response {
	var asks []string
	for _, m := range missing {
		switch m {
		case resolver.MissingStartTime:
			asks = append(asks, "when it should happen (date and time)")
		case resolver.MissingLocation:
			asks = append(asks, "where you want to meet")
		default:
			asks = append(asks, m)
		}
	}
	return &Response{
		Text:       fmt.Sprintf("Almost there. I still need %s.", strings.Join(asks, " and ")),
		Descriptor: d,
		Missing:    missing,
	}
}

// renderPartial reports a dispatch that only partly succeeded. The pending
// leg is named; this is never phrased as a total failure.
func renderPartial(d *model.MeetingDescriptor, loc *time.Location) *Response {
	var pending []string
	for _, leg := range d.PendingLegs {
		pending = append(pending, string(leg))
	}
	return &Response{
		Text: fmt.Sprintf("Booked %s, but the %s update didn't go through yet. I'll finish it on your next message.",
			describeMeeting(d, loc), strings.Join(pending, " and ")),
		Descriptor:  d,
		PendingLegs: d.PendingLegs,
	}
}

func renderQuery(meetings []*model.MeetingDescriptor, loc *time.Location) *Response {
	if len(meetings) == 0 {
		return &Response{Text: "You have nothing scheduled in that window. Want to set something up?"}
	}
	lines := make([]string, 0, len(meetings)+1)
	lines = append(lines, "Here's what you have coming up:")
	for _, d := range meetings {
		lines = append(lines, "- "+describeMeeting(d, loc))
	}
	return &Response{Text: strings.Join(lines, "\n")}
}

// renderWhichMeeting asks the user to pick a target when a cancel or
// reschedule does not identify one, listing up to three upcoming meetings.
func renderWhichMeeting(verb string, upcoming []*model.MeetingDescriptor, loc *time.Location) *Response {
	if len(upcoming) == 0 {
		return &Response{Text: fmt.Sprintf("I couldn't find a meeting to %s.", verb)}
	}
	if len(upcoming) > 3 {
		upcoming = upcoming[:3]
	}
	lines := []string{fmt.Sprintf("Which meeting do you want to %s?", verb)}
	for _, d := range upcoming {
		lines = append(lines, "- "+describeMeeting(d, loc))
	}
	return &Response{Text: strings.Join(lines, "\n")}
}

func renderUnknown() *Response {
	return &Response{Text: "I can schedule, move, cancel, or look up meetings for you. What would you like to do?"}
}

func renderUnderstandingDown() *Response {
	return &Response{Text: "I'm having trouble understanding messages right now. Please try again in a moment."}
}

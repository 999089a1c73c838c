package understand

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/slotbot-ai/slotbot/internal/model"
)

// wireResult mirrors the JSON the model is asked to emit.
type wireResult struct {
	Intent          string   `json:"intent"`
	Date            *string  `json:"date"`
	Time            *string  `json:"time"`
	DurationMinutes *int     `json:"duration_minutes"`
	MeetingType     *string  `json:"meeting_type"`
	Location        *string  `json:"location"`
	Participants    []string `json:"participants"`
	Title           *string  `json:"title"`
	Confidence      float64  `json:"confidence"`
}

// parseIntentJSON decodes a completion into an IntentResult. Markdown code
// fences around the JSON are tolerated.
func parseIntentJSON(content string) (*model.IntentResult, error) {
	content = stripFences(content)

	var w wireResult
	if err := json.Unmarshal([]byte(content), &w); err != nil {
		return nil, fmt.Errorf("intent json: %w", err)
	}

	res := &model.IntentResult{
		Intent:     parseIntent(w.Intent),
		Confidence: w.Confidence,
		Slots: model.Slots{
			Title:           emptyToNil(w.Title),
			Date:            emptyToNil(w.Date),
			Time:            emptyToNil(w.Time),
			DurationMinutes: w.DurationMinutes,
			Modality:        emptyToNil(w.MeetingType),
			Location:        emptyToNil(w.Location),
			Participants:    w.Participants,
		},
	}
	return res, nil
}

func parseIntent(s string) model.Intent {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "schedule":
		return model.IntentSchedule
	case "reschedule":
		return model.IntentReschedule
	case "cancel":
		return model.IntentCancel
	case "query", "info":
		return model.IntentQuery
	default:
		return model.IntentUnknown
	}
}

func emptyToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

// stripFences removes a surrounding markdown code block if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

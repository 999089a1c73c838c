package understand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbot-ai/slotbot/internal/model"
)

func TestParseIntentJSON_Full(t *testing.T) {
	res, err := parseIntentJSON(`{
		"intent": "schedule",
		"date": "2026-09-01",
		"time": "14:00",
		"duration_minutes": 45,
		"meeting_type": "in-person",
		"location": "Cafe Central",
		"participants": ["ana", "luis"],
		"title": "Budget review",
		"confidence": 0.92
	}`)
	require.NoError(t, err)
	assert.Equal(t, model.IntentSchedule, res.Intent)
	assert.Equal(t, 0.92, res.Confidence)
	require.NotNil(t, res.Slots.Date)
	assert.Equal(t, "2026-09-01", *res.Slots.Date)
	require.NotNil(t, res.Slots.Time)
	assert.Equal(t, "14:00", *res.Slots.Time)
	require.NotNil(t, res.Slots.DurationMinutes)
	assert.Equal(t, 45, *res.Slots.DurationMinutes)
	require.NotNil(t, res.Slots.Modality)
	assert.Equal(t, "in-person", *res.Slots.Modality)
	require.NotNil(t, res.Slots.Location)
	assert.Equal(t, "Cafe Central", *res.Slots.Location)
	assert.Equal(t, []string{"ana", "luis"}, res.Slots.Participants)
	require.NotNil(t, res.Slots.Title)
	assert.Equal(t, "Budget review", *res.Slots.Title)
}

func TestParseIntentJSON_StripsFences(t *testing.T) {
	res, err := parseIntentJSON("```json\n{\"intent\": \"cancel\", \"confidence\": 0.8}\n```")
	require.NoError(t, err)
	assert.Equal(t, model.IntentCancel, res.Intent)
}

func TestParseIntentJSON_NullAndEmptyBecomeNil(t *testing.T) {
	res, err := parseIntentJSON(`{"intent": "query", "date": "", "time": "null", "confidence": 0.5}`)
	require.NoError(t, err)
	assert.Equal(t, model.IntentQuery, res.Intent)
	assert.Nil(t, res.Slots.Date)
	assert.Nil(t, res.Slots.Time)
}

func TestParseIntentJSON_UnknownIntent(t *testing.T) {
	res, err := parseIntentJSON(`{"intent": "greeting", "confidence": 0.3}`)
	require.NoError(t, err)
	assert.Equal(t, model.IntentUnknown, res.Intent)
}

func TestParseIntentJSON_Malformed(t *testing.T) {
	_, err := parseIntentJSON(`sure, here is the meeting you asked for`)
	require.Error(t, err)
}

package memwriter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbot-ai/slotbot/internal/contextstore"
	"github.com/slotbot-ai/slotbot/internal/model"
	"github.com/slotbot-ai/slotbot/internal/store/memory"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type fakeIndex struct {
	upserts []contextstore.TurnPayload
	err     error
}

func (f *fakeIndex) Search(ctx context.Context, userID, query string, vec []float32, topK int) (model.ContextWindow, error) {
	return nil, nil
}

func (f *fakeIndex) UpsertTurn(ctx context.Context, turnID string, vec []float32, payload contextstore.TurnPayload) error {
	if f.err != nil {
		return f.err
	}
	f.upserts = append(f.upserts, payload)
	return nil
}

func (f *fakeIndex) DeleteTurn(ctx context.Context, userID, turnID string) error { return nil }

func testTurn() *model.Turn {
	intent := model.IntentSchedule
	return &model.Turn{
		TurnID:    "turn-1",
		UserID:    "u1",
		Text:      "meet ana tomorrow at 2pm",
		Timestamp: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
		Intent:    &intent,
		Response:  "Scheduled.",
	}
}

func TestWrite_PersistsAndIndexes(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	idx := &fakeIndex{}
	w := New(s, idx, &fakeEmbedder{}, zerolog.Nop())

	turn := testTurn()
	require.NoError(t, w.Write(ctx, turn))
	assert.True(t, turn.Embedded)
	require.Len(t, idx.upserts, 1)
	assert.Equal(t, "u1", idx.upserts[0].UserID)

	turns, err := s.Turns().ListRecent(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.True(t, turns[0].Embedded)
}

func TestWrite_EmbedFailureStoresUnembedded(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	w := New(s, &fakeIndex{}, &fakeEmbedder{err: errors.New("down")}, zerolog.Nop())

	turn := testTurn()
	require.NoError(t, w.Write(ctx, turn))
	assert.False(t, turn.Embedded)

	turns, err := s.Turns().ListRecent(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.False(t, turns[0].Embedded)
}

func TestWrite_IndexFailureStoresUnembedded(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	w := New(s, &fakeIndex{err: errors.New("weaviate down")}, &fakeEmbedder{}, zerolog.Nop())

	turn := testTurn()
	require.NoError(t, w.Write(ctx, turn))
	assert.False(t, turn.Embedded)
}

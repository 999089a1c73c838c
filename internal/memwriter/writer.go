// Package memwriter writes a finished turn into conversation memory: the
// durable turn record plus the vector index entry future retrieval depends on.
package memwriter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/slotbot-ai/slotbot/internal/contextstore"
	"github.com/slotbot-ai/slotbot/internal/embeddings"
	"github.com/slotbot-ai/slotbot/internal/model"
	"github.com/slotbot-ai/slotbot/internal/store"
)

// Writer records turns. The index write is best-effort: losing it degrades
// future context retrieval but never fails the turn.
type Writer struct {
	store    store.Store
	index    contextstore.Index
	embedder embeddings.Provider
	log      zerolog.Logger
}

func New(s store.Store, idx contextstore.Index, emb embeddings.Provider, log zerolog.Logger) *Writer {
	return &Writer{store: s, index: idx, embedder: emb, log: log}
}

// Write indexes and persists a turn. The index write happens first so the
// Embedded flag is final when the turn row lands; a failed embed or upsert is
// logged and the turn is stored unembedded.
func (w *Writer) Write(ctx context.Context, turn *model.Turn) error {
	turn.Embedded = w.tryIndex(ctx, turn)

	if _, err := w.store.Turns().Create(ctx, turn); err != nil {
		return err
	}
	return nil
}

func (w *Writer) tryIndex(ctx context.Context, turn *model.Turn) bool {
	if w.index == nil || w.embedder == nil {
		return false
	}

	vec, err := w.embedder.Embed(ctx, turn.Text)
	if err != nil {
		w.log.Warn().Err(err).Str("turnId", turn.TurnID).Msg("embed failed, storing turn unembedded")
		return false
	}

	payload := contextstore.TurnPayload{
		UserID:    turn.UserID,
		Text:      turn.Text,
		Timestamp: turn.Timestamp.Format(time.RFC3339),
	}
	if turn.Descriptor != nil {
		if raw, merr := json.Marshal(turn.Descriptor); merr == nil {
			payload.DescriptorJSON = string(raw)
		}
	}

	if err := w.index.UpsertTurn(ctx, turn.TurnID, vec, payload); err != nil {
		w.log.Warn().Err(err).Str("turnId", turn.TurnID).Msg("index upsert failed, storing turn unembedded")
		return false
	}
	return true
}

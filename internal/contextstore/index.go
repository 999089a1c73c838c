// Package contextstore adapts a vector index over past conversation turns.
// It is an enhancement, not a hard dependency: the engine degrades to an
// empty context window when it is unavailable.
package contextstore

import (
	"context"
	"sort"

	"github.com/slotbot-ai/slotbot/internal/model"
)

// Index provides vector search over conversation turns and index maintenance.
type Index interface {
	// Search returns up to topK snippets for the user, ranked by similarity
	// descending with ties broken by recency descending.
	Search(ctx context.Context, userID, query string, vec []float32, topK int) (model.ContextWindow, error)

	// UpsertTurn writes a turn into the index. Idempotent by turn id.
	UpsertTurn(ctx context.Context, turnID string, vec []float32, payload TurnPayload) error

	// DeleteTurn removes a turn from the index. Best-effort.
	DeleteTurn(ctx context.Context, userID, turnID string) error
}

// TurnPayload is the indexed representation of one turn.
type TurnPayload struct {
	UserID         string
	Text           string
	DescriptorJSON string
	Timestamp      string // RFC3339
}

// rank orders a window by score descending, ties by recency descending.
func rank(w model.ContextWindow) {
	sort.SliceStable(w, func(i, j int) bool {
		if w[i].Score != w[j].Score {
			return w[i].Score > w[j].Score
		}
		return w[i].Timestamp.After(w[j].Timestamp)
	})
}

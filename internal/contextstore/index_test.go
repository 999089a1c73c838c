package contextstore

import (
	"testing"
	"time"

	"github.com/slotbot-ai/slotbot/internal/model"
)

func TestRank_ScoreDescendingTiesByRecency(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	w := model.ContextWindow{
		{TurnID: "old-high", Score: 0.9, Timestamp: base},
		{TurnID: "low", Score: 0.2, Timestamp: base.Add(3 * time.Hour)},
		{TurnID: "new-high", Score: 0.9, Timestamp: base.Add(time.Hour)},
		{TurnID: "mid", Score: 0.5, Timestamp: base},
	}
	rank(w)

	want := []string{"new-high", "old-high", "mid", "low"}
	for i, id := range want {
		if w[i].TurnID != id {
			t.Fatalf("position %d: got %s want %s (window %v)", i, w[i].TurnID, id, w)
		}
	}
}

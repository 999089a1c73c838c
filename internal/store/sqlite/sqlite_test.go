package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/slotbot-ai/slotbot/internal/store"
	"github.com/slotbot-ai/slotbot/internal/store/storetest"
)

func TestSqliteStore_Compliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		path := filepath.Join(t.TempDir(), "slotbot.db")
		s, err := New(path)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		return s
	})
}

func TestLegsRoundTrip(t *testing.T) {
	if got := joinLegs(nil); got != "" {
		t.Fatalf("joinLegs(nil) = %q", got)
	}
	if got := splitLegs(""); got != nil {
		t.Fatalf("splitLegs(\"\") = %v", got)
	}
	legs := splitLegs("calendar,task")
	if len(legs) != 2 || string(legs[0]) != "calendar" || string(legs[1]) != "task" {
		t.Fatalf("splitLegs: %v", legs)
	}
}

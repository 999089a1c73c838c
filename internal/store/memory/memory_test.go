package memory

import (
	"testing"

	"github.com/slotbot-ai/slotbot/internal/store"
	"github.com/slotbot-ai/slotbot/internal/store/storetest"
)

func TestMemoryStore_Compliance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

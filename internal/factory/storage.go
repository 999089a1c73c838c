// Package factory builds the engine's collaborators from configuration.
package factory

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/slotbot-ai/slotbot/internal/config"
	storepkg "github.com/slotbot-ai/slotbot/internal/store"
	storemem "github.com/slotbot-ai/slotbot/internal/store/memory"
	storepg "github.com/slotbot-ai/slotbot/internal/store/postgres"
	storesqlite "github.com/slotbot-ai/slotbot/internal/store/sqlite"
)

// NewStore returns the store.Store selected by cfg.DBDriver.
func NewStore(cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("SLOTBOT_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}
		return storepg.New(cfg.PostgresDSN)
	case "sqlite":
		return storesqlite.New(cfg.SQLitePath)
	case "memory":
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return storemem.New(), nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}

package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/slotbot-ai/slotbot/internal/config"
	"github.com/slotbot-ai/slotbot/internal/contextstore"
)

// NewContextIndex creates the Weaviate-backed context index. Schema bootstrap
// runs asynchronously so startup is not blocked by a slow vector store.
func NewContextIndex(ctx context.Context, cfg *config.Config, log zerolog.Logger) (contextstore.Index, error) {
	if cfg.WeaviateURL == "" {
		return nil, fmt.Errorf("weaviate URL not configured")
	}

	idx, err := contextstore.NewWeaviateIndex(cfg.WeaviateURL, cfg.SearchAlpha)
	if err != nil {
		return nil, err
	}

	go func() {
		bootstrapCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if err := contextstore.Bootstrap(bootstrapCtx, cfg.WeaviateURL); err != nil {
			log.Warn().Err(err).Str("url", cfg.WeaviateURL).Msg("context index bootstrap failed")
		} else {
			log.Debug().Str("url", cfg.WeaviateURL).Msg("context index bootstrap completed")
		}
	}()

	return idx, nil
}

package factory

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/slotbot-ai/slotbot/internal/config"
	emb "github.com/slotbot-ai/slotbot/internal/embeddings"
	"github.com/slotbot-ai/slotbot/internal/embeddings/ollama"
)

// NewEmbeddingProvider creates an embedding provider based on config.
// Launches an async warmup; returns the provider immediately for fast startup.
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config, log zerolog.Logger) emb.Provider {
	var provider emb.Provider

	switch cfg.EmbedProvider {
	case "", "ollama":
		provider = ollama.New(cfg.EmbedModel)
	default:
		log.Warn().Str("provider", cfg.EmbedProvider).Msg("unknown embedding provider; using ollama")
		provider = ollama.New(cfg.EmbedModel)
	}

	go func() {
		warmupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if vec, err := provider.Embed(warmupCtx, "warmup-check"); err != nil || len(vec) == 0 {
			log.Warn().Err(err).
				Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding provider warmup failed")
		} else {
			log.Debug().Str("provider", cfg.EmbedProvider).Str("model", cfg.EmbedModel).
				Msg("embedding provider warmup completed")
		}
	}()

	return provider
}

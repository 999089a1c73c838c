package contextstore

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/slotbot-ai/slotbot/internal/health"
)

// IndexHealthChecker monitors context index health via the concrete index's
// HealthPinger when it has one.
type IndexHealthChecker struct {
	index        Index
	healthy      atomic.Int32
	log          zerolog.Logger
	probeTimeout time.Duration
}

// NewIndexHealthChecker creates a new context index health checker.
func NewIndexHealthChecker(index Index, log zerolog.Logger, probeTimeout time.Duration) *IndexHealthChecker {
	hc := &IndexHealthChecker{index: index, log: log, probeTimeout: probeTimeout}
	hc.healthy.Store(0) // start unhealthy until first successful probe
	return hc
}

func (hc *IndexHealthChecker) Name() string    { return "contextstore" }
func (hc *IndexHealthChecker) IsHealthy() bool { return hc.healthy.Load() == 1 }

func (hc *IndexHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run := func() {
		to := hc.probeTimeout
		if to <= 0 {
			to = 2 * time.Second
		}
		checkCtx, cancel := context.WithTimeout(ctx, to)
		defer cancel()

		ok := true
		if p, okCast := hc.index.(health.HealthPinger); okCast {
			if err := p.HealthPing(checkCtx); err != nil {
				ok = false
				hc.log.Error().Stack().Str("checker", hc.Name()).Err(err).Msg("context index health check failed")
			}
		} else if err := hc.index.DeleteTurn(checkCtx, "", ""); err != nil {
			// Fallback: DeleteTurn with empty inputs is a no-op round trip.
			ok = false
			hc.log.Error().Stack().Str("checker", hc.Name()).Err(err).Msg("context index health check failed")
		}
		if ok {
			hc.healthy.Store(1)
		} else {
			hc.healthy.Store(0)
		}
	}

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// Package health aggregates per-component health probes into one service
// readiness flag. Component checkers (store, context index, embedder) probe
// on their own schedule; the service checker only reads their cached state.
package health

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// HealthChecker is implemented by component-level checkers.
type HealthChecker interface {
	Name() string
	IsHealthy() bool
	Start(ctx context.Context, interval time.Duration)
}

// ServiceHealthChecker folds component checkers into a single flag. The
// service is healthy only while every dependency is.
type ServiceHealthChecker struct {
	healthy atomic.Int32
	deps    []HealthChecker
	log     zerolog.Logger
}

func NewServiceHealthChecker(log zerolog.Logger, deps ...HealthChecker) *ServiceHealthChecker {
	h := &ServiceHealthChecker{deps: deps, log: log}
	h.healthy.Store(0)
	return h
}

// IsHealthy returns the cached service health.
func (h *ServiceHealthChecker) IsHealthy() bool { return h.healthy.Load() == 1 }

// evaluate recomputes the flag and returns the names of unhealthy deps.
func (h *ServiceHealthChecker) evaluate() []string {
	var down []string
	for _, c := range h.deps {
		if !c.IsHealthy() {
			down = append(down, c.Name())
		}
	}
	if len(down) == 0 {
		h.healthy.Store(1)
	} else {
		h.healthy.Store(0)
	}
	return down
}

// Start re-evaluates dependency health every interval until ctx is done,
// logging transitions with the components responsible.
func (h *ServiceHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := int32(0)
	tick := func() {
		down := h.evaluate()
		cur := h.healthy.Load()
		if cur == prev {
			return
		}
		if cur == 1 {
			h.log.Info().Msg("service health: UP")
		} else {
			h.log.Error().Str("unhealthy", strings.Join(down, ",")).Msg("service health: DOWN")
		}
		prev = cur
	}

	tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

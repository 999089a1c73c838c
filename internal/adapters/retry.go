package adapters

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is an explicit retry policy passed into each adapter call site.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Jitter is the randomization factor applied to each interval, 0..1.
	Jitter float64
}

// DefaultPolicy bounds a dispatch leg at maxAttempts with 250ms..5s backoff.
func DefaultPolicy(maxAttempts int) Policy {
	return Policy{
		MaxAttempts:     maxAttempts,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.3,
	}
}

func (p Policy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.Reset()
	return b
}

// Op is one attempt of an adapter call.
type Op func(ctx context.Context) (Outcome, error)

// Retry runs op until it returns a non-transient outcome or the attempt
// budget is exhausted. Transient outcomes back off exponentially with
// jitter between attempts; permanent outcomes and successes return at once.
func Retry(ctx context.Context, p Policy, op Op) (Outcome, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	b := p.newBackOff()

	var out Outcome
	var err error
	for attempt := 1; ; attempt++ {
		out, err = op(ctx)
		if out != OutcomeTransient || attempt >= p.MaxAttempts {
			return out, err
		}
		select {
		case <-ctx.Done():
			return OutcomeTransient, ctx.Err()
		case <-time.After(b.NextBackOff()):
		}
	}
}

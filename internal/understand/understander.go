// Package understand wraps the language model call that turns one message
// plus retrieved context into a structured intent and slot set.
package understand

import (
	"context"
	"time"

	"github.com/slotbot-ai/slotbot/internal/adapters"
	"github.com/slotbot-ai/slotbot/internal/model"
)

// Request carries everything the classifier needs for one turn.
type Request struct {
	Text     string
	Window   model.ContextWindow
	Now      time.Time
	Timezone string
}

// Understander classifies a message into an IntentResult. Failures are
// outcome-classified at this boundary; raw transport errors never reach the
// engine.
type Understander interface {
	Classify(ctx context.Context, req Request) (*model.IntentResult, adapters.Outcome, error)
}

// WithRetry wraps an Understander with an explicit retry policy. Transient
// outcomes are retried inside the wrapper; the engine sees only the final
// classification.
func WithRetry(u Understander, pol adapters.Policy) Understander {
	return &retrying{next: u, pol: pol}
}

type retrying struct {
	next Understander
	pol  adapters.Policy
}

func (r *retrying) Classify(ctx context.Context, req Request) (*model.IntentResult, adapters.Outcome, error) {
	var res *model.IntentResult
	out, err := adapters.Retry(ctx, r.pol, func(ctx context.Context) (adapters.Outcome, error) {
		var o adapters.Outcome
		var e error
		res, o, e = r.next.Classify(ctx, req)
		return o, e
	})
	return res, out, err
}

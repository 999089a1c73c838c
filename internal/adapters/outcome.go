// Package adapters defines the outcome taxonomy and retry policy shared by
// every external adapter (context store, understanding, calendar, task).
// Adapters classify results; the policy for acting on a classification
// belongs to the caller.
package adapters

import (
	"context"
	"errors"
	"net/http"
)

// Outcome classifies the result of one external adapter call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeTransient is retryable within the caller's budget.
	OutcomeTransient
	// OutcomePermanent must never be retried.
	OutcomePermanent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransient:
		return "transient_failure"
	default:
		return "permanent_failure"
	}
}

// ClassifyHTTP maps an HTTP status code to an outcome. 2xx is success,
// 408/429 and 5xx are transient, everything else 4xx is permanent.
func ClassifyHTTP(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return OutcomeTransient
	case status >= 500:
		return OutcomeTransient
	default:
		return OutcomePermanent
	}
}

// ClassifyErr maps a transport-level error to an outcome. Context deadline
// and network errors are transient; a cancelled context is permanent because
// the caller has already abandoned the work.
func ClassifyErr(err error) Outcome {
	if errors.Is(err, context.Canceled) {
		return OutcomePermanent
	}
	return OutcomeTransient
}

package adapters

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2.0,
		Jitter:          0,
	}
}

func TestRetry_SuccessReturnsImmediately(t *testing.T) {
	calls := 0
	out, err := Retry(context.Background(), fastPolicy(5), func(ctx context.Context) (Outcome, error) {
		calls++
		return OutcomeSuccess, nil
	})
	if err != nil || out != OutcomeSuccess {
		t.Fatalf("unexpected result: %v %v", out, err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetry_PermanentNotRetried(t *testing.T) {
	calls := 0
	out, _ := Retry(context.Background(), fastPolicy(5), func(ctx context.Context) (Outcome, error) {
		calls++
		return OutcomePermanent, errors.New("bad request")
	})
	if out != OutcomePermanent {
		t.Fatalf("expected permanent, got %v", out)
	}
	if calls != 1 {
		t.Fatalf("permanent failure retried: %d calls", calls)
	}
}

func TestRetry_TransientBounded(t *testing.T) {
	calls := 0
	out, err := Retry(context.Background(), fastPolicy(3), func(ctx context.Context) (Outcome, error) {
		calls++
		return OutcomeTransient, errors.New("try later")
	})
	if out != OutcomeTransient || err == nil {
		t.Fatalf("expected transient exhaustion, got %v %v", out, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	calls := 0
	out, err := Retry(context.Background(), fastPolicy(5), func(ctx context.Context) (Outcome, error) {
		calls++
		if calls < 3 {
			return OutcomeTransient, errors.New("flaky")
		}
		return OutcomeSuccess, nil
	})
	if err != nil || out != OutcomeSuccess {
		t.Fatalf("unexpected result: %v %v", out, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetry_ContextCancelStopsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 10, InitialInterval: time.Hour, MaxInterval: time.Hour, Multiplier: 1, Jitter: 0}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := Retry(ctx, p, func(ctx context.Context) (Outcome, error) {
			return OutcomeTransient, errors.New("down")
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not respect cancellation")
	}
}

func TestClassifyHTTP(t *testing.T) {
	cases := map[int]Outcome{
		http.StatusOK:                  OutcomeSuccess,
		http.StatusCreated:             OutcomeSuccess,
		http.StatusNoContent:           OutcomeSuccess,
		http.StatusBadRequest:          OutcomePermanent,
		http.StatusNotFound:            OutcomePermanent,
		http.StatusRequestTimeout:      OutcomeTransient,
		http.StatusTooManyRequests:     OutcomeTransient,
		http.StatusInternalServerError: OutcomeTransient,
		http.StatusBadGateway:          OutcomeTransient,
	}
	for status, want := range cases {
		if got := ClassifyHTTP(status); got != want {
			t.Errorf("status %d: got %v want %v", status, got, want)
		}
	}
}

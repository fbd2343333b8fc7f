package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 2, Timeout: time.Minute})
	boom := errors.New("boom")
	fail := func(context.Context) error { return boom }

	if err := b.Call(context.Background(), fail); !errors.Is(err, boom) {
		t.Fatalf("first failure should pass through, got %v", err)
	}
	if err := b.Call(context.Background(), fail); !errors.Is(err, boom) {
		t.Fatalf("second failure should pass through, got %v", err)
	}
	if st := b.State(); st != StateOpen {
		t.Fatalf("expected open after threshold, got %s", st)
	}
	if err := b.Call(context.Background(), fail); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker must reject, got %v", err)
	}
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: 10 * time.Millisecond})
	now := time.Now()
	b.now = func() time.Time { return now }

	_ = b.Call(context.Background(), func(context.Context) error { return errors.New("x") })
	if st := b.State(); st != StateOpen {
		t.Fatalf("expected open, got %s", st)
	}

	// Advance past the open timeout; the next probe succeeds and closes.
	now = now.Add(20 * time.Millisecond)
	if st := b.State(); st != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", st)
	}
	if err := b.Call(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if st := b.State(); st != StateClosed {
		t.Fatalf("expected closed after probe success, got %s", st)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker(BreakerOpts{FailThreshold: 1, Timeout: 10 * time.Millisecond})
	now := time.Now()
	b.now = func() time.Time { return now }

	_ = b.Call(context.Background(), func(context.Context) error { return errors.New("x") })
	now = now.Add(20 * time.Millisecond)
	_ = b.Call(context.Background(), func(context.Context) error { return errors.New("y") })
	if st := b.State(); st != StateOpen {
		t.Fatalf("expected reopened after half-open failure, got %s", st)
	}
}

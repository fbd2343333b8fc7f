package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/cinegraph/cinegraph/pkg/fn"
	"github.com/cinegraph/cinegraph/pkg/resilience"
	"golang.org/x/time/rate"
)

// Resilient wraps a Client with a per-call deadline, client-side rate
// limiting, bounded retry with backoff, and a shared circuit breaker. It is
// the form in which the capability is handed to the engine.
type Resilient struct {
	inner   Client
	opts    Options
	limiter *rate.Limiter
	breaker *resilience.Breaker
	retry   fn.RetryOpts
}

// NewResilient wraps inner with the configured guardrails.
func NewResilient(inner Client, opts Options) *Resilient {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}
	retry := fn.DefaultRetry
	retry.MaxAttempts = opts.MaxAttempts
	return &Resilient{
		inner:   inner,
		opts:    opts,
		limiter: limiter,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		retry:   retry,
	}
}

// Generate implements Client.
func (r *Resilient) Generate(ctx context.Context, req Request) (*Response, error) {
	return call(r, ctx, func(ctx context.Context) (*Response, error) {
		return r.inner.Generate(ctx, req)
	})
}

// Embed implements Client.
func (r *Resilient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return call(r, ctx, func(ctx context.Context) ([][]float32, error) {
		return r.inner.Embed(ctx, texts)
	})
}

func call[T any](r *Resilient, ctx context.Context, f func(context.Context) (T, error)) (T, error) {
	var zero T
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return zero, err
		}
	}

	result := fn.Retry(ctx, r.retry, func(ctx context.Context) fn.Result[T] {
		var out T
		err := r.breaker.Call(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
			defer cancel()
			var callErr error
			out, callErr = f(callCtx)
			return callErr
		})
		if err != nil {
			return fn.Err[T](err)
		}
		return fn.Ok(out)
	})

	v, err := result.Unwrap()
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return zero, err
	}
	return v, nil
}

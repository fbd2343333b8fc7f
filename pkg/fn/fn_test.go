package fn

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestThenShortCircuits(t *testing.T) {
	boom := errors.New("boom")
	first := func(_ context.Context, n int) Result[int] { return Err[int](boom) }
	var called bool
	second := func(_ context.Context, n int) Result[string] {
		called = true
		return Ok("never")
	}
	r := Then(first, second)(context.Background(), 1)
	if _, err := r.Unwrap(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if called {
		t.Fatal("second stage must not run after a failure")
	}
}

func TestPipelineOrder(t *testing.T) {
	add := func(n int) Stage[int, int] {
		return MapStage(func(v int) int { return v + n })
	}
	r := Pipeline(add(1), add(10), add(100))(context.Background(), 0)
	v, err := r.Unwrap()
	if err != nil || v != 111 {
		t.Fatalf("got (%d, %v), want (111, nil)", v, err)
	}
}

func TestParMapResultPreservesOrder(t *testing.T) {
	items := []int{5, 4, 3, 2, 1}
	results := ParMapResult(items, 2, func(n int) Result[string] {
		time.Sleep(time.Duration(n) * time.Millisecond)
		return Ok(fmt.Sprintf("v%d", n))
	})
	collected, err := Collect(results).Unwrap()
	if err != nil {
		t.Fatal(err)
	}
	for i, n := range items {
		if collected[i] != fmt.Sprintf("v%d", n) {
			t.Fatalf("order broken at %d: %v", i, collected)
		}
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	var attempts atomic.Int32
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		if attempts.Add(1) < 3 {
			return Errf[int]("transient")
		}
		return Ok(42)
	})
	v, err := r.Unwrap()
	if err != nil || v != 42 {
		t.Fatalf("got (%d, %v)", v, err)
	}
	if attempts.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestRetryExhausts(t *testing.T) {
	opts := RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[int] {
		return Errf[int]("always")
	})
	if r.IsOk() {
		t.Fatal("expected failure after exhausting attempts")
	}
}

func TestUniqueBy(t *testing.T) {
	type pair struct{ k, v string }
	in := []pair{{"a", "1"}, {"b", "2"}, {"a", "3"}}
	out := UniqueBy(in, func(p pair) string { return p.k })
	if len(out) != 2 || out[0].v != "1" || out[1].v != "2" {
		t.Fatalf("unexpected result: %v", out)
	}
}

func TestChunk(t *testing.T) {
	out := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(out) != 3 || len(out[2]) != 1 {
		t.Fatalf("unexpected chunks: %v", out)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("n <= 0 must return nil")
	}
}

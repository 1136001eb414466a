package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var (
	errBoom     = errors.New("boom")
	errHarmless = errors.New("harmless")
)

func failing(context.Context) error    { return errBoom }
func succeeding(context.Context) error { return nil }

func newTestBreaker(clock *fakeClock) *CircuitBreaker {
	return NewCircuitBreaker(Config{
		MaxFailures: 2,
		OpenTimeout: time.Minute,
		IsFailure:   func(err error) bool { return !errors.Is(err, errHarmless) },
		Now:         clock.Now,
	})
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	cb := newTestBreaker(&fakeClock{now: time.Unix(0, 0)})

	if cb.State() != StateClosed {
		t.Fatalf("initial state = %v", cb.State())
	}
	_ = cb.Execute(ctx, failing)
	if cb.State() != StateClosed {
		t.Fatalf("state after one failure = %v", cb.State())
	}
	_ = cb.Execute(ctx, failing)
	if cb.State() != StateOpen {
		t.Fatalf("state after two failures = %v", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitBreakerOpen) || called {
		t.Fatalf("open breaker must reject without calling: err=%v called=%v", err, called)
	}
}

func TestCircuitBreaker_HalfOpenTrial(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(0, 0)}
	cb := newTestBreaker(clock)
	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)

	clock.Advance(2 * time.Minute)
	if err := cb.Execute(ctx, failing); !errors.Is(err, errBoom) {
		t.Fatalf("trial call should run, got %v", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("failed trial must reopen, got %v", cb.State())
	}

	clock.Advance(2 * time.Minute)
	if err := cb.Execute(ctx, succeeding); err != nil {
		t.Fatalf("trial: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("successful trial must close, got %v", cb.State())
	}
}

func TestCircuitBreaker_IgnoresUncountedErrors(t *testing.T) {
	ctx := context.Background()
	cb := newTestBreaker(&fakeClock{now: time.Unix(0, 0)})
	for i := 0; i < 5; i++ {
		if err := cb.Execute(ctx, func(context.Context) error { return errHarmless }); !errors.Is(err, errHarmless) {
			t.Fatalf("expected passthrough error, got %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("uncounted errors must not open the circuit, got %v", cb.State())
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	ctx := context.Background()
	cb := newTestBreaker(&fakeClock{now: time.Unix(0, 0)})
	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, succeeding)
	_ = cb.Execute(ctx, failing)
	if cb.State() != StateClosed {
		t.Errorf("failures separated by a success must not open, got %v", cb.State())
	}
	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("Reset state = %v", cb.State())
	}
}

func TestCircuitBreaker_DisabledAndNil(t *testing.T) {
	ctx := context.Background()
	disabled := NewCircuitBreaker(Config{})
	for i := 0; i < 10; i++ {
		_ = disabled.Execute(ctx, failing)
	}
	if disabled.State() != StateClosed {
		t.Errorf("disabled breaker opened")
	}
	var nilBreaker *CircuitBreaker
	if err := nilBreaker.Execute(ctx, succeeding); err != nil {
		t.Errorf("nil breaker should pass through: %v", err)
	}
}

func TestState_String(t *testing.T) {
	for state, want := range map[State]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown"} {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

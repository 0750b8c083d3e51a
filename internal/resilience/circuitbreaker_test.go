package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

// trip drives b with n consecutive failing calls.
func trip(t *testing.T, b *Breaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := b.Do(func() error { return errBackend }); !errors.Is(err, errBackend) {
			t.Fatalf("failure %d: err = %v, want errBackend", i, err)
		}
	}
}

func TestBreaker_ClosedForwardsCalls(t *testing.T) {
	b := New("test")

	called := false
	if err := b.Do(func() error { called = true; return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !called {
		t.Error("fn was not called in closed state")
	}
	if b.State() != StateClosed {
		t.Errorf("State = %v, want closed", b.State())
	}
}

func TestBreaker_OpensAfterMaxFailures(t *testing.T) {
	b := New("test", WithMaxFailures(3))
	trip(t, b, 3)

	if b.State() != StateOpen {
		t.Fatalf("State = %v, want open", b.State())
	}
	err := b.Do(func() error {
		t.Error("fn must not run while open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("test", WithMaxFailures(3))
	trip(t, b, 2)

	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}

	// Two more failures are below the threshold again.
	trip(t, b, 2)
	if b.State() != StateClosed {
		t.Errorf("State = %v, want closed", b.State())
	}
}

func TestBreaker_ClosesAfterSuccessfulProbes(t *testing.T) {
	b := New("test", WithMaxFailures(1), WithResetTimeout(time.Millisecond), WithProbeBudget(2))
	trip(t, b, 1)

	time.Sleep(5 * time.Millisecond)
	if b.State() != StateHalfOpen {
		t.Fatalf("State = %v, want half-open", b.State())
	}

	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if b.State() != StateClosed {
		t.Errorf("State = %v, want closed", b.State())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b := New("test", WithMaxFailures(1), WithResetTimeout(50*time.Millisecond))
	trip(t, b, 1)

	time.Sleep(60 * time.Millisecond)
	trip(t, b, 1) // failed probe

	if b.State() != StateOpen {
		t.Fatalf("State = %v, want open", b.State())
	}
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreaker_ProbeBudgetExhausted(t *testing.T) {
	b := New("test", WithMaxFailures(1), WithResetTimeout(time.Millisecond), WithProbeBudget(1))
	trip(t, b, 1)

	time.Sleep(5 * time.Millisecond)

	// The only budgeted probe is in flight; a second concurrent caller is
	// rejected even though the timeout elapsed.
	release := make(chan struct{})
	done := make(chan error, 1)
	entered := make(chan struct{})
	go func() {
		done <- b.Do(func() error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("concurrent err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("probe err = %v", err)
	}
}

func TestBreaker_ResetClearsState(t *testing.T) {
	b := New("test", WithMaxFailures(1))
	trip(t, b, 1)

	b.Reset()
	if b.State() != StateClosed {
		t.Fatalf("State = %v, want closed", b.State())
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Errorf("Do after reset: %v", err)
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(42):     "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

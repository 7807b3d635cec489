package breaker

import (
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests move time forward without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int, timeout time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cb := New(threshold, timeout)
	cb.now = clock.Now
	return cb, clock
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		cb.OnFailure()
		if !cb.Allow() {
			t.Fatalf("breaker should stay closed after %d failures", i+1)
		}
	}
	cb.OnFailure()

	if cb.State() != Open {
		t.Fatalf("state = %v, want open", cb.State())
	}
	if cb.Allow() {
		t.Fatalf("open breaker must fast-fail")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Minute)

	cb.OnFailure()
	cb.OnFailure()
	cb.OnSuccess()
	if got := cb.Failures(); got != 0 {
		t.Fatalf("failures = %d, want 0", got)
	}

	cb.OnFailure()
	cb.OnFailure()
	if cb.State() != Closed {
		t.Fatalf("non-consecutive failures must not open the circuit")
	}
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)

	cb.OnFailure()
	if cb.Allow() {
		t.Fatalf("breaker should be open")
	}

	clock.Advance(time.Minute)

	admitted := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cb.Allow() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Fatalf("half-open admitted %d probes, want 1", admitted)
	}
	if cb.State() != HalfOpen {
		t.Fatalf("state = %v, want half_open", cb.State())
	}
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)

	cb.OnFailure()
	clock.Advance(time.Minute)
	if !cb.Allow() {
		t.Fatalf("probe should be admitted after the cool-down")
	}

	cb.OnSuccess()
	if cb.State() != Closed {
		t.Fatalf("state = %v, want closed", cb.State())
	}
	if cb.Failures() != 0 {
		t.Fatalf("failures = %d, want 0", cb.Failures())
	}
	if !cb.Allow() {
		t.Fatalf("closed breaker must admit calls")
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)

	cb.OnFailure()
	clock.Advance(time.Minute)
	if !cb.Allow() {
		t.Fatalf("probe should be admitted")
	}

	cb.OnFailure()
	if cb.State() != Open {
		t.Fatalf("state = %v, want open", cb.State())
	}
	if cb.Allow() {
		t.Fatalf("reopened breaker must fast-fail")
	}

	// The cool-down restarts from the probe failure.
	clock.Advance(30 * time.Second)
	if cb.Allow() {
		t.Fatalf("cool-down should not have elapsed yet")
	}
	clock.Advance(30 * time.Second)
	if !cb.Allow() {
		t.Fatalf("probe should be admitted after the restarted cool-down")
	}
}

func TestBreakerStragglerSuccessKeepsCircuitOpen(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Minute)

	cb.OnFailure()
	if cb.State() != Open {
		t.Fatalf("state = %v, want open", cb.State())
	}

	// A success from a call admitted before the transition must not cancel
	// the cool-down.
	cb.OnSuccess()
	if cb.State() != Open {
		t.Fatalf("straggler success closed the circuit")
	}
	if cb.Failures() != 0 {
		t.Fatalf("failures = %d, want 0", cb.Failures())
	}
	if cb.Allow() {
		t.Fatalf("open breaker must fast-fail during the cool-down")
	}

	clock.Advance(time.Minute)
	if !cb.Allow() {
		t.Fatalf("probe should be admitted after the cool-down")
	}
}

func TestBreakerStateString(t *testing.T) {
	for state, want := range map[State]string{Closed: "closed", Open: "open", HalfOpen: "half_open"} {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

// Package breaker implements the circuit breaker guarding the fetch path.
package breaker

import (
	"sync"
	"time"
)

// State is the circuit position.
type State int

const (
	// Closed admits every call.
	Closed State = iota
	// Open fast-fails every call until the cool-down elapses.
	Open
	// HalfOpen admits a single probe call.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker isolates the harvester from a systemically failing remote.
// One instance is shared across all in-flight fetch tasks.
type CircuitBreaker struct {
	threshold int
	timeout   time.Duration
	now       func() time.Time

	mu           sync.Mutex
	state        State
	failureCount int
	openedAt     time.Time
}

// New builds a breaker that opens after threshold consecutive failures and
// admits a probe once timeout has elapsed.
func New(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. While open, it returns false
// until the cool-down elapses, at which point exactly one caller is admitted
// as the half-open probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Closed:
		return true
	case Open:
		if cb.now().Sub(cb.openedAt) >= cb.timeout {
			cb.state = HalfOpen
			return true
		}
		return false
	case HalfOpen:
		// The probe is already in flight.
		return false
	default:
		return false
	}
}

// OnSuccess records a successful call. A half-open probe success closes the
// circuit; a straggler success from a call admitted before the circuit opened
// resets the failure count but leaves the open cool-down running.
func (cb *CircuitBreaker) OnSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	if cb.state != Open {
		cb.state = Closed
	}
}

// OnFailure records a failed call. Reaching the threshold while closed opens
// the circuit; a failed half-open probe reopens it and restarts the cool-down.
func (cb *CircuitBreaker) OnFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case HalfOpen:
		cb.state = Open
		cb.openedAt = cb.now()
	case Closed:
		cb.failureCount++
		if cb.failureCount >= cb.threshold {
			cb.state = Open
			cb.openedAt = cb.now()
		}
	case Open:
		// Stragglers from calls admitted before the transition.
		cb.openedAt = cb.now()
	}
}

// State returns the current circuit position.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureCount
}

package shopclient

import (
	"errors"
	"testing"
	"time"

	"github.com/idealinvestse/shoppi-shop-finder/config"
)

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:   3,
		Backoff:    100 * time.Millisecond,
		BackoffMax: time.Second,
		MaxElapsed: 10 * time.Second,
	}
}

func TestRetryNeverOnNotFound(t *testing.T) {
	p := testPolicy()
	if _, ok := p.Next(0, ErrNotFound{Shop: "alpha"}, 0); ok {
		t.Fatalf("not_found must never be retried")
	}
}

func TestRetryNeverOnMalformed(t *testing.T) {
	p := testPolicy()
	if _, ok := p.Next(0, ErrMalformed{Err: errors.New("bad json")}, 0); ok {
		t.Fatalf("malformed responses must never be retried")
	}
}

func TestRetryTransientUpToMaxTries(t *testing.T) {
	p := testPolicy()
	err := ErrTimeout{Err: errors.New("deadline")}

	delay, ok := p.Next(0, err, 0)
	if !ok || delay != 100*time.Millisecond {
		t.Fatalf("attempt 0: delay=%v ok=%v", delay, ok)
	}
	delay, ok = p.Next(1, err, 0)
	if !ok || delay != 200*time.Millisecond {
		t.Fatalf("attempt 1: delay=%v ok=%v", delay, ok)
	}
	if _, ok := p.Next(2, err, 0); ok {
		t.Fatalf("attempt 2 would exceed MaxTries=3")
	}
}

func TestRetryDelayCapped(t *testing.T) {
	p := RetryPolicy{MaxTries: 20, Backoff: 100 * time.Millisecond, BackoffMax: 500 * time.Millisecond}
	err := ErrConnection{Err: errors.New("refused")}

	for attempt := 0; attempt < 19; attempt++ {
		delay, ok := p.Next(attempt, err, 0)
		if !ok {
			t.Fatalf("attempt %d should retry", attempt)
		}
		if delay > p.BackoffMax {
			t.Fatalf("attempt %d delay %v exceeds cap %v", attempt, delay, p.BackoffMax)
		}
	}
}

func TestRetryElapsedBudget(t *testing.T) {
	p := testPolicy()
	err := ErrServer{Status: 503, Err: errors.New("down")}

	if _, ok := p.Next(0, err, 9*time.Second+950*time.Millisecond); ok {
		t.Fatalf("retry would exceed the cumulative elapsed budget")
	}
	if _, ok := p.Next(0, err, time.Second); !ok {
		t.Fatalf("retry within the budget should proceed")
	}
}

func TestNewRetryPolicyFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxTries = 7
	cfg.RetryBackoff = 250 * time.Millisecond
	cfg.RetryBackoffMax = 3 * time.Second
	cfg.RetryMaxElapsed = 42 * time.Second
	p := NewRetryPolicy(cfg)

	if p.MaxTries != 7 || p.Backoff != 250*time.Millisecond || p.BackoffMax != 3*time.Second || p.MaxElapsed != 42*time.Second {
		t.Fatalf("policy %+v does not match config", p)
	}
}

package shopclient

import (
	"time"

	"github.com/idealinvestse/shoppi-shop-finder/config"
)

// RetryPolicy decides whether and when a failed fetch is attempted again.
// It is a pure value, safe to share across all concurrent tasks.
type RetryPolicy struct {
	MaxTries   int
	Backoff    time.Duration
	BackoffMax time.Duration
	MaxElapsed time.Duration
}

// NewRetryPolicy builds the policy from configuration.
func NewRetryPolicy(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxTries:   cfg.MaxTries,
		Backoff:    cfg.RetryBackoff,
		BackoffMax: cfg.RetryBackoffMax,
		MaxElapsed: cfg.RetryMaxElapsed,
	}
}

// Next reports the backoff delay before the attempt following attempt
// (0-based) and whether that attempt should happen at all. elapsed is the
// cumulative time already spent on the shop including prior backoff waits.
func (p RetryPolicy) Next(attempt int, err error, elapsed time.Duration) (time.Duration, bool) {
	if !Retryable(err) {
		return 0, false
	}
	if attempt+1 >= p.MaxTries {
		return 0, false
	}

	delay := p.delay(attempt)
	if p.MaxElapsed > 0 && elapsed+delay > p.MaxElapsed {
		return 0, false
	}
	return delay, true
}

// delay is base * 2^attempt, capped at BackoffMax.
func (p RetryPolicy) delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	base := p.Backoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.BackoffMax > 0 && delay >= p.BackoffMax {
			return p.BackoffMax
		}
	}
	if p.BackoffMax > 0 && delay > p.BackoffMax {
		delay = p.BackoffMax
	}
	return delay
}

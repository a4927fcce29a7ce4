// Package retry provides a bounded retry policy with exponential backoff.
// The policy is a value decoupled from the operation it retries, so callers
// can share one configuration across unrelated fetches.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/mezo-lite/internal/logging"
)

// Policy configures retry behavior
type Policy struct {
	MaxAttempts  int           // Total attempts including the first
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Cap on the delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
	Jitter       bool          // Randomize each delay in [delay/2, delay)
}

// DefaultPolicy returns the retry policy used for transient RPC and HTTP
// failures. Pattern: 1s, 2s, 4s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Func is an operation that can be retried
type Func func(ctx context.Context, attempt int) error

// Do executes fn under the policy, sleeping between failed attempts. It
// returns nil as soon as an attempt succeeds, the last error once attempts
// are exhausted, and the context error if cancelled mid-backoff.
func (p Policy) Do(ctx context.Context, fn Func) error {
	logger := logging.FromContext(ctx)

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				logger.WithField("attempts", attempt).Info("Operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if attempt >= attempts {
			break
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := p.delay(attempt)
		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": attempts,
			"delay":       delay.String(),
			"error":       err.Error(),
		}).Warn("Operation failed, retrying with backoff")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}

// delay calculates the backoff delay for the given attempt (1-based)
func (p Policy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		d = d/2 + rand.Float64()*d/2
	}
	return time.Duration(d)
}

// Package retry provides a small linear-backoff retry helper shared by the
// RPC and HTTP clients.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy configures how many attempts to make and how long to wait between
// them. The wait grows linearly: Delay after the first failure, 2*Delay
// after the second, and so on.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy matches the per-chain defaults applied by config validation.
var DefaultPolicy = Policy{MaxAttempts: 3, Delay: time.Second}

// Do runs fn until it succeeds, the attempts are exhausted, or the context
// is cancelled. The last error is returned wrapped with the attempt count.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < attempts {
			if err := sleep(ctx, p.Delay*time.Duration(attempt)); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Sleep waits for d or until the context is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rendis/ticketflow/pkg/schema"
)

// RetryPolicy is the per-action retry budget: Count extra attempts separated
// by a constant Delay.
type RetryPolicy struct {
	Count int
	Delay time.Duration
}

// MaxRetryDelaySeconds is the longest retry delay a time.Duration can hold.
const MaxRetryDelaySeconds = math.MaxInt64 / int64(time.Second)

// PolicyFor reads the retry fields of an action. Negative values count as zero.
// A delay too large to represent is a configuration error.
func PolicyFor(a *schema.Action) (RetryPolicy, error) {
	if a == nil {
		return RetryPolicy{}, nil
	}
	if int64(a.RetryDelaySeconds) > MaxRetryDelaySeconds {
		return RetryPolicy{}, schema.NewErrorf(schema.ErrCodeConfig,
			"%s: retry_delay_seconds %d is too large", a.Type, a.RetryDelaySeconds)
	}
	p := RetryPolicy{Count: max(a.RetryCount, 0)}
	if a.RetryDelaySeconds > 0 {
		p.Delay = time.Duration(a.RetryDelaySeconds) * time.Second
	}
	return p, nil
}

// IsRetryableError reports whether another attempt may run after err.
// Configuration and no-candidate failures are retried too; they are
// deterministic but the action's policy decides, not the error class.
// Only cancellation stops the loop early.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !schema.IsCode(err, schema.ErrCodeCancelled)
}

// WaitForBackoff sleeps for delay or returns early if the context is cancelled.
func WaitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

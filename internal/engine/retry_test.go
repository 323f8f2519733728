package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/ticketflow/pkg/schema"
)

func TestPolicyFor(t *testing.T) {
	tests := []struct {
		name   string
		action *schema.Action
		want   RetryPolicy
	}{
		{"nil action", nil, RetryPolicy{}},
		{"count and delay", &schema.Action{RetryCount: 2, RetryDelaySeconds: 3}, RetryPolicy{Count: 2, Delay: 3 * time.Second}},
		{"negatives clamp", &schema.Action{RetryCount: -1, RetryDelaySeconds: -5}, RetryPolicy{}},
		{"largest delay", &schema.Action{RetryCount: 1, RetryDelaySeconds: int(MaxRetryDelaySeconds)},
			RetryPolicy{Count: 1, Delay: time.Duration(MaxRetryDelaySeconds) * time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PolicyFor(tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolicyFor_DelayOverflow(t *testing.T) {
	_, err := PolicyFor(&schema.Action{Type: schema.KindWait, RetryCount: 1, RetryDelaySeconds: int(MaxRetryDelaySeconds) + 1})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeConfig))
	assert.Contains(t, err.Error(), "retry_delay_seconds")
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.False(t, IsRetryableError(fmt.Errorf("wrapped: %w", context.Canceled)))
	assert.False(t, IsRetryableError(schema.NewError(schema.ErrCodeCancelled, "cancelled")))

	assert.True(t, IsRetryableError(context.DeadlineExceeded))
	assert.True(t, IsRetryableError(errors.New("connection refused")))
	for _, code := range []string{schema.ErrCodeConfig, schema.ErrCodeNoCandidate, schema.ErrCodeDependency, schema.ErrCodeTimeout} {
		assert.True(t, IsRetryableError(schema.NewError(code, "x")), code)
	}
}

func TestWaitForBackoff_ZeroDelay(t *testing.T) {
	assert.NoError(t, WaitForBackoff(context.Background(), 0))
	assert.NoError(t, WaitForBackoff(context.Background(), -1))
}

func TestWaitForBackoff_ZeroDelayCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, WaitForBackoff(ctx, 0), context.Canceled)
}

func TestWaitForBackoff_Waits(t *testing.T) {
	start := time.Now()
	err := WaitForBackoff(context.Background(), 50*time.Millisecond)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestWaitForBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := WaitForBackoff(ctx, 5*time.Second)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

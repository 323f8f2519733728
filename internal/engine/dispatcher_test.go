package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/ticketflow/internal/actions"
	"github.com/rendis/ticketflow/pkg/schema"
)

func TestDispatch_Success(t *testing.T) {
	h := &fakeHandler{kind: schema.KindSetField}
	d := NewDispatcher(newRegistry(t, h), nil)

	res := d.Dispatch(context.Background(), &schema.Action{Name: "a", Type: schema.KindSetField}, 0, testContext(nil))
	assert.True(t, res.Success)
	assert.Empty(t, res.ErrorMessage)
	assert.Equal(t, 0, res.RetryAttempted)
	assert.Equal(t, map[string]any{"call": 1}, res.Output)
}

func TestDispatch_RetryBound(t *testing.T) {
	h := &fakeHandler{kind: schema.KindSetField, fn: func(int, actions.Input) (map[string]any, error) {
		return nil, errors.New("store unavailable")
	}}
	d := NewDispatcher(newRegistry(t, h), nil)

	res := d.Dispatch(context.Background(), &schema.Action{Type: schema.KindSetField, RetryCount: 2}, 0, testContext(nil))
	assert.False(t, res.Success)
	assert.Len(t, h.Calls(), 3)
	assert.Equal(t, 2, res.RetryAttempted)
	assert.Contains(t, res.ErrorMessage, "store unavailable")
	assert.Contains(t, res.ErrorMessage, schema.ErrCodeRetryExhausted)
}

func TestDispatch_NoRetryPolicy(t *testing.T) {
	h := &fakeHandler{kind: schema.KindSetField, fn: func(int, actions.Input) (map[string]any, error) {
		return nil, schema.NewError(schema.ErrCodeConfig, "bad config")
	}}
	d := NewDispatcher(newRegistry(t, h), nil)

	res := d.Dispatch(context.Background(), &schema.Action{Type: schema.KindSetField}, 0, testContext(nil))
	assert.False(t, res.Success)
	assert.Len(t, h.Calls(), 1)
	assert.Equal(t, 0, res.RetryAttempted)
	assert.Equal(t, "[CONFIG_ERROR] bad config", res.ErrorMessage)
}

func TestDispatch_SucceedsOnRetry(t *testing.T) {
	h := &fakeHandler{kind: schema.KindSetField, fn: func(call int, _ actions.Input) (map[string]any, error) {
		if call < 2 {
			return nil, errors.New("flaky")
		}
		return map[string]any{"ok": true}, nil
	}}
	d := NewDispatcher(newRegistry(t, h), nil)

	res := d.Dispatch(context.Background(), &schema.Action{Type: schema.KindSetField, RetryCount: 5}, 3, testContext(nil))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.RetryAttempted)
	assert.Empty(t, res.ErrorMessage)

	calls := h.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].IdempotencyKey, calls[1].IdempotencyKey, "key is stable across attempts")
	assert.Equal(t, IdempotencyKey("inst-1", 3), calls[0].IdempotencyKey)
	assert.Equal(t, 3, calls[0].Index)
}

func TestDispatch_RetryDelay(t *testing.T) {
	h := &fakeHandler{kind: schema.KindSetField, fn: func(call int, _ actions.Input) (map[string]any, error) {
		if call == 1 {
			return nil, errors.New("flaky")
		}
		return nil, nil
	}}
	d := NewDispatcher(newRegistry(t, h), nil)

	start := time.Now()
	res := d.Dispatch(context.Background(), &schema.Action{Type: schema.KindSetField, RetryCount: 1, RetryDelaySeconds: 1}, 0, testContext(nil))
	require.True(t, res.Success)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.GreaterOrEqual(t, res.DurationMs, int64(1000), "duration covers the retries")
	assert.Equal(t, map[string]any{}, res.Output)
}

func TestDispatch_CancelledDuringBackoff(t *testing.T) {
	h := &fakeHandler{kind: schema.KindSetField, fn: func(int, actions.Input) (map[string]any, error) {
		return nil, errors.New("down")
	}}
	d := NewDispatcher(newRegistry(t, h), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	res := d.Dispatch(ctx, &schema.Action{Type: schema.KindSetField, RetryCount: 3, RetryDelaySeconds: 30}, 0, testContext(nil))
	assert.False(t, res.Success)
	assert.Len(t, h.Calls(), 1)
	assert.Equal(t, 0, res.RetryAttempted)
	assert.Contains(t, res.ErrorMessage, schema.ErrCodeCancelled)
}

func TestDispatch_ResolvesEveryAttempt(t *testing.T) {
	h := &fakeHandler{kind: schema.KindSetField, fn: func(call int, _ actions.Input) (map[string]any, error) {
		if call == 1 {
			return nil, errors.New("flaky")
		}
		return nil, nil
	}}
	d := NewDispatcher(newRegistry(t, h), nil)
	action := &schema.Action{
		Type:       schema.KindSetField,
		Config:     map[string]any{"value": "{{customer.tier}}", "keep": "{{missing}}"},
		RetryCount: 1,
	}

	res := d.Dispatch(context.Background(), action, 0, testContext(map[string]any{"customer": map[string]any{"tier": "gold"}}))
	require.True(t, res.Success)
	for _, c := range h.Calls() {
		assert.Equal(t, "gold", c.Config["value"])
		assert.Equal(t, "{{missing}}", c.Config["keep"])
	}
	assert.Equal(t, "{{customer.tier}}", action.Config.(map[string]any)["value"], "action config is not mutated")
}

func TestDispatch_SchemaViolation(t *testing.T) {
	h := &fakeHandler{
		kind:   schema.KindSetField,
		schema: json.RawMessage(`{"type": "object", "properties": {"count": {"type": "integer"}}}`),
	}
	d := NewDispatcher(newRegistry(t, h), nil)

	res := d.Dispatch(context.Background(), &schema.Action{Type: schema.KindSetField, Config: map[string]any{"count": "many"}}, 0, testContext(nil))
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "invalid config")
	assert.Empty(t, h.Calls())
}

func TestDispatch_ConfigNotObject(t *testing.T) {
	h := &fakeHandler{kind: schema.KindSetField}
	d := NewDispatcher(newRegistry(t, h), nil)

	res := d.Dispatch(context.Background(), &schema.Action{Type: schema.KindSetField, Config: []any{"x"}}, 0, testContext(nil))
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "config must be a JSON object")
}

func TestDispatch_KnownKindWithoutHandler(t *testing.T) {
	d := NewDispatcher(newRegistry(t), nil)

	res := d.Dispatch(context.Background(), &schema.Action{Type: schema.KindSendEmail}, 0, testContext(nil))
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, `no handler registered for action type "send_email"`)
}

func TestDispatch_HandlerPanic(t *testing.T) {
	h := &fakeHandler{kind: schema.KindSetField, fn: func(int, actions.Input) (map[string]any, error) {
		panic("boom")
	}}
	d := NewDispatcher(newRegistry(t, h), nil)

	res := d.Dispatch(context.Background(), &schema.Action{Type: schema.KindSetField}, 0, testContext(nil))
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "handler panicked: boom")
}

func TestIdempotencyKey(t *testing.T) {
	assert.Equal(t, IdempotencyKey("i", 0), IdempotencyKey("i", 0))
	assert.NotEqual(t, IdempotencyKey("i", 0), IdempotencyKey("i", 1))
	assert.NotEqual(t, IdempotencyKey("i", 0), IdempotencyKey("j", 0))
	assert.NotEqual(t, CallKey("i"), CallKey("i"))
}

func TestDispatchWithKey_RetriesShareKey(t *testing.T) {
	h := &fakeHandler{kind: schema.KindSetField, fn: func(call int, _ actions.Input) (map[string]any, error) {
		if call == 1 {
			return nil, errors.New("flaky")
		}
		return nil, nil
	}}
	d := NewDispatcher(newRegistry(t, h), nil)

	res := d.DispatchWithKey(context.Background(), &schema.Action{Type: schema.KindSetField, RetryCount: 1}, 0, "call-key", testContext(nil))
	require.True(t, res.Success, res.ErrorMessage)
	calls := h.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "call-key", calls[0].IdempotencyKey)
	assert.Equal(t, "call-key", calls[1].IdempotencyKey)
}

func TestDispatch_RetryDelayTooLarge(t *testing.T) {
	h := &fakeHandler{kind: schema.KindSetField}
	d := NewDispatcher(newRegistry(t, h), nil)

	action := &schema.Action{Type: schema.KindSetField, RetryCount: 1, RetryDelaySeconds: int(MaxRetryDelaySeconds) + 1}
	res := d.Dispatch(context.Background(), action, 0, testContext(nil))
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "[CONFIG_ERROR]")
	assert.Empty(t, h.Calls())
}

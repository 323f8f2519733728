package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/ticketflow/internal/actions"
	"github.com/rendis/ticketflow/internal/expressions"
	"github.com/rendis/ticketflow/internal/logging"
	"github.com/rendis/ticketflow/internal/validation"
	"github.com/rendis/ticketflow/pkg/schema"
)

// effectNamespace scopes idempotency keys to this engine.
var effectNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/rendis/ticketflow/effects"))

// IdempotencyKey returns the token shared by every attempt of the action at
// index within one instance.
func IdempotencyKey(instanceID string, index int) string {
	return uuid.NewSHA1(effectNamespace, []byte(instanceID+"/"+strconv.Itoa(index))).String()
}

// CallKey returns a fresh token for a standalone action call. Two calls never
// share it, so each one applies its effects; its retries still do.
func CallKey(instanceID string) string {
	return uuid.NewSHA1(effectNamespace, []byte(instanceID+"/call/"+uuid.NewString())).String()
}

// Dispatcher runs one action: resolve, validate, execute, and retry per the
// action's policy. Every attempt starts again from template resolution.
type Dispatcher struct {
	registry  actions.HandlerRegistry
	validator *validation.ConfigValidator
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher over the given handlers.
func NewDispatcher(registry actions.HandlerRegistry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		validator: validation.NewConfigValidator(),
		logger:    logging.OrDefault(logger).With("module", "dispatcher"),
	}
}

// Dispatch executes action as the index-th action of the instance in ec.
// It never returns an error: failures are reported inside the result.
func (d *Dispatcher) Dispatch(ctx context.Context, action *schema.Action, index int, ec *schema.ExecutionContext) *schema.ActionResult {
	return d.DispatchWithKey(ctx, action, index, IdempotencyKey(ec.InstanceID, index), ec)
}

// DispatchWithKey is Dispatch with a caller-chosen idempotency key. Every
// attempt of this call shares key.
func (d *Dispatcher) DispatchWithKey(ctx context.Context, action *schema.Action, index int, key string, ec *schema.ExecutionContext) *schema.ActionResult {
	start := time.Now()
	policy, err := PolicyFor(action)
	if err != nil {
		return failed(err, start, 0)
	}
	ctx = logging.WithAction(ctx, action.Name)

	var lastErr error
	for attempt := 0; attempt <= policy.Count; attempt++ {
		if attempt > 0 {
			if err := WaitForBackoff(ctx, policy.Delay); err != nil {
				lastErr = schema.NewErrorf(schema.ErrCodeCancelled, "retry of %s cancelled: %v", action.Type, lastErr).WithCause(err)
				return failed(lastErr, start, attempt-1)
			}
		}

		d.logger.DebugContext(ctx, "executing action", "type", action.Type, "attempt", attempt, "index", index)
		output, err := d.attempt(ctx, action, index, ec, key)
		if err == nil {
			return &schema.ActionResult{
				Success:        true,
				Output:         output,
				DurationMs:     time.Since(start).Milliseconds(),
				RetryAttempted: attempt,
			}
		}
		lastErr = err
		d.logger.WarnContext(ctx, "action failed", "type", action.Type, "attempt", attempt, "error", err)
		if !IsRetryableError(err) {
			return failed(err, start, attempt)
		}
	}

	if policy.Count == 0 {
		return failed(lastErr, start, 0)
	}
	exhausted := schema.NewErrorf(schema.ErrCodeRetryExhausted, "retries exhausted after %d attempts: %v",
		policy.Count+1, lastErr).WithCause(lastErr)
	d.logger.ErrorContext(ctx, "action retries exhausted", "type", action.Type, "retry_count", policy.Count, "error", lastErr)
	return failed(exhausted, start, policy.Count)
}

// attempt performs one full invocation. Handler panics become dependency errors.
func (d *Dispatcher) attempt(ctx context.Context, action *schema.Action, index int, ec *schema.ExecutionContext, key string) (output map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = schema.NewErrorf(schema.ErrCodeDependency, "%s: handler panicked: %v", action.Type, r)
		}
	}()

	config, err := resolveConfig(action, ec)
	if err != nil {
		return nil, err
	}
	h, err := d.registry.Get(action.Type)
	if err != nil {
		return nil, err
	}
	if err := d.validator.Validate(config, h.Schema().ConfigSchema); err != nil {
		return nil, err
	}
	if err := h.Validate(config); err != nil {
		return nil, err
	}
	output, err = h.Execute(ctx, actions.Input{
		Config:         config,
		Exec:           ec,
		Action:         action.Name,
		Index:          index,
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, err
	}
	if output == nil {
		output = map[string]any{}
	}
	return output, nil
}

// resolveConfig substitutes placeholders in a copy of the action config.
func resolveConfig(action *schema.Action, ec *schema.ExecutionContext) (map[string]any, error) {
	switch resolved := expressions.Resolve(action.Config, ec).(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return resolved, nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "%s: config must be a JSON object, got %T", action.Type, resolved)
	}
}

func failed(err error, start time.Time, retries int) *schema.ActionResult {
	return &schema.ActionResult{
		Success:        false,
		ErrorMessage:   errorMessage(err),
		DurationMs:     time.Since(start).Milliseconds(),
		RetryAttempted: retries,
	}
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

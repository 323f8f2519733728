package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rendis/ticketflow/internal/actions"
	"github.com/rendis/ticketflow/internal/logging"
	"github.com/rendis/ticketflow/pkg/schema"
)

// DefaultPoolSize is the default number of instances Submit runs at once.
const DefaultPoolSize = 10

// ExecutorConfig holds configuration for the executor.
type ExecutorConfig struct {
	PoolSize int // max concurrent instances for Submit
	Logger   *slog.Logger
}

// Executor is the public entry point: it runs single actions and ordered
// action lists for one workflow instance.
type Executor struct {
	dispatcher *Dispatcher
	pool       *InstancePool
	logger     *slog.Logger
}

// NewExecutor creates an Executor dispatching to the handlers in registry.
func NewExecutor(registry actions.HandlerRegistry, cfg ExecutorConfig) *Executor {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	logger := logging.OrDefault(cfg.Logger)
	return &Executor{
		dispatcher: NewDispatcher(registry, logger),
		pool:       NewInstancePool(cfg.PoolSize, logger.With("module", "pool")),
		logger:     logger.With("module", "executor"),
	}
}

// ExecuteAction runs one standalone action for the instance in ec. Each call
// gets its own idempotency key, so repeated calls on one instance all apply
// their effects.
func (e *Executor) ExecuteAction(ctx context.Context, action *schema.Action, ec *schema.ExecutionContext) *schema.ActionResult {
	ec = ensureInstance(ec)
	ctx = logging.WithInstance(ctx, ec.InstanceID, ec.WorkflowID)
	return e.executeAt(ctx, action, 0, CallKey(ec.InstanceID), ec)
}

func (e *Executor) executeAt(ctx context.Context, action *schema.Action, index int, key string, ec *schema.ExecutionContext) *schema.ActionResult {
	if action == nil {
		return &schema.ActionResult{ErrorMessage: schema.NewError(schema.ErrCodeConfig, "action is nil").Error()}
	}
	if !action.Type.Known() {
		return e.unknownKind(ctx, action)
	}
	return e.dispatcher.DispatchWithKey(ctx, action, index, key, ec)
}

// Run executes actions strictly in order and aggregates their results.
// A failed action never stops the list; stop_workflow does not either, use
// SliceAtStop beforehand for early termination.
func (e *Executor) Run(ctx context.Context, list []*schema.Action, ec *schema.ExecutionContext) *schema.ExecutionResult {
	ec = ensureInstance(ec)
	ctx = logging.WithInstance(ctx, ec.InstanceID, ec.WorkflowID)

	result := &schema.ExecutionResult{
		InstanceID: ec.InstanceID,
		Outputs:    make([]*schema.ActionResult, 0, len(list)),
	}
	e.logger.InfoContext(ctx, "instance started", "actions", len(list))
	for i, action := range list {
		res := e.executeAt(ctx, action, i, IdempotencyKey(ec.InstanceID, i), ec)
		result.Outputs = append(result.Outputs, res)
		result.TotalDurationMs += res.DurationMs
		if res.Success {
			result.ActionsExecuted++
		} else {
			result.ActionsFailed++
		}
	}
	result.Success = result.ActionsFailed == 0
	e.logger.InfoContext(ctx, "instance finished",
		"success", result.Success,
		"actions_executed", result.ActionsExecuted,
		"actions_failed", result.ActionsFailed,
		"total_duration_ms", result.TotalDurationMs,
	)
	return result
}

// Submit runs the instance on the pool and hands the result to done. It
// blocks only while the pool is full. An instance id that is still running
// is refused with ErrInstanceRunning. This is the entry point for schedulers
// that start instances in the background.
func (e *Executor) Submit(ctx context.Context, list []*schema.Action, ec *schema.ExecutionContext, done func(*schema.ExecutionResult)) error {
	ec = ensureInstance(ec)
	return e.pool.Submit(ctx, ec.InstanceID, func(ctx context.Context) {
		res := e.Run(ctx, list, ec)
		if done != nil {
			done(res)
		}
	})
}

// RunPooled is Run on the instance pool: the caller waits for the result but
// shares the concurrency bound with every other submitted instance.
func (e *Executor) RunPooled(ctx context.Context, list []*schema.Action, ec *schema.ExecutionContext) (*schema.ExecutionResult, error) {
	results := make(chan *schema.ExecutionResult, 1)
	if err := e.Submit(ctx, list, ec, func(r *schema.ExecutionResult) { results <- r }); err != nil {
		return nil, err
	}
	select {
	case r := <-results:
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait blocks until every submitted instance has finished.
func (e *Executor) Wait() { e.pool.Wait() }

// Shutdown stops accepting instances and waits for running ones.
func (e *Executor) Shutdown() { e.pool.Shutdown() }

// Metrics reports the instance pool counters.
func (e *Executor) Metrics() PoolMetrics { return e.pool.Metrics() }

// SliceAtStop returns the prefix of list up to and including the first
// stop_workflow action. Without one the whole list is returned.
func SliceAtStop(list []*schema.Action) []*schema.Action {
	for i, a := range list {
		if a != nil && a.Type == schema.KindStopWorkflow {
			return list[:i+1]
		}
	}
	return list
}

// ensureInstance fills in an instance id when the caller supplied none.
// The caller's context is copied, never modified.
func ensureInstance(ec *schema.ExecutionContext) *schema.ExecutionContext {
	if ec == nil {
		return &schema.ExecutionContext{InstanceID: uuid.NewString()}
	}
	if ec.InstanceID != "" {
		return ec
	}
	cp := *ec
	cp.InstanceID = uuid.NewString()
	return &cp
}

package actions

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/rendis/ticketflow/pkg/schema"
)

// maxWaitSeconds is the longest wait a time.Duration can hold.
const maxWaitSeconds = float64(math.MaxInt64) / float64(time.Second)

// FlowHandlers returns the control-flow handlers.
func FlowHandlers(deps Deps) []Handler {
	return []Handler{
		&waitHandler{deps: deps},
		&callWorkflowHandler{deps: deps},
		&stopWorkflowHandler{},
	}
}

// --- wait ---

type waitHandler struct{ deps Deps }

func (h *waitHandler) Kind() schema.ActionKind { return schema.KindWait }

func (h *waitHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description:  "Suspend the instance for a number of seconds.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {"seconds": {"type": ["number", "string"]}}}`),
	}
}

func (h *waitHandler) Validate(config map[string]any) error {
	_, err := h.duration(config)
	return err
}

func (h *waitHandler) duration(config map[string]any) (time.Duration, error) {
	if _, ok := config["seconds"]; !ok {
		return 0, missingConfig(h.Kind(), "seconds")
	}
	secs, ok := floatParam(config, "seconds", 0)
	if !ok || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0, schema.NewErrorf(schema.ErrCodeConfig, "%s: seconds must be a number", h.Kind())
	}
	if secs < 0 {
		return 0, schema.NewErrorf(schema.ErrCodeConfig, "%s: seconds must not be negative", h.Kind())
	}
	if secs >= maxWaitSeconds {
		return 0, schema.NewErrorf(schema.ErrCodeConfig, "%s: %vs is too large", h.Kind(), secs)
	}
	d := time.Duration(secs * float64(time.Second))
	if h.deps.MaxWait > 0 && d > h.deps.MaxWait {
		return 0, schema.NewErrorf(schema.ErrCodeConfig, "%s: %vs exceeds the maximum wait of %s", h.Kind(), secs, h.deps.MaxWait)
	}
	return d, nil
}

func (h *waitHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	d, err := h.duration(in.Config)
	if err != nil {
		return nil, err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return map[string]any{"waited_seconds": d.Seconds()}, nil
	case <-ctx.Done():
		return nil, schema.NewErrorf(schema.ErrCodeCancelled, "%s: cancelled", h.Kind()).WithCause(ctx.Err())
	}
}

// --- call_workflow ---

type callWorkflowHandler struct{ deps Deps }

func (h *callWorkflowHandler) Kind() schema.ActionKind { return schema.KindCallWorkflow }

func (h *callWorkflowHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description:  "Ask the scheduler to start a nested workflow run without waiting for it.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {"workflow_id": ` + idType + `}}`),
	}
}

func (h *callWorkflowHandler) Validate(config map[string]any) error {
	return requireParams(h.Kind(), config, "workflow_id")
}

// Execute never fails once the config is valid: scheduler errors are logged
// and reported as triggered=false.
func (h *callWorkflowHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	workflowID := stringParam(in.Config, "workflow_id", "")
	out := map[string]any{"workflow_id": workflowID, "triggered": false}
	if h.deps.Starter == nil {
		h.deps.Logger.WarnContext(ctx, "no workflow starter configured", "workflow_id", workflowID)
		return out, nil
	}

	req := WorkflowStart{WorkflowID: workflowID}
	if in.Exec != nil {
		req.ParentInstanceID = in.Exec.InstanceID
		req.ParentWorkflowID = in.Exec.WorkflowID
		req.EventPayload = in.Exec.EventPayload
		req.Variables = in.Exec.Variables
	}
	if err := h.deps.Starter.StartWorkflow(ctx, req); err != nil {
		h.deps.Logger.WarnContext(ctx, "nested workflow start failed", "workflow_id", workflowID, "error", err)
		return out, nil
	}
	out["triggered"] = true
	return out, nil
}

// --- stop_workflow ---

type stopWorkflowHandler struct{}

func (h *stopWorkflowHandler) Kind() schema.ActionKind { return schema.KindStopWorkflow }

func (h *stopWorkflowHandler) Schema() HandlerSchema {
	return HandlerSchema{Description: "Mark the stop boundary of an action list."}
}

func (h *stopWorkflowHandler) Validate(map[string]any) error { return nil }

func (h *stopWorkflowHandler) Execute(context.Context, Input) (map[string]any, error) {
	return map[string]any{"stopped": true}, nil
}

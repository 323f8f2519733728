package actions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rendis/ticketflow/internal/store"
	"github.com/rendis/ticketflow/pkg/schema"
)

// SLAHandlers returns the SLA control handlers.
func SLAHandlers(deps Deps) []Handler {
	return []Handler{
		&applySLAHandler{deps: deps},
		&pauseSLAHandler{deps: deps},
		&resumeSLAHandler{deps: deps},
	}
}

const ticketOnlySchema = `{"type": "object", "properties": {"ticket_id": ` + idType + `}}`

// --- apply_sla_policy ---

type applySLAHandler struct{ deps Deps }

func (h *applySLAHandler) Kind() schema.ActionKind { return schema.KindApplySLAPolicy }

func (h *applySLAHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description:  "Compute due dates from the policy's first rule and upsert the ticket's SLA row.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {"ticket_id": ` + idType + `, "policy_id": ` + idType + `}}`),
	}
}

func (h *applySLAHandler) Validate(config map[string]any) error {
	return requireParams(h.Kind(), config, "policy_id")
}

func (h *applySLAHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	policyID := stringParam(in.Config, "policy_id", "")
	rule, err := h.deps.Store.FirstSLARule(ctx, policyID)
	if err != nil {
		return nil, dependencyErr(h.Kind(), "load policy", err)
	}

	now := h.deps.now()
	sla := &store.TicketSLA{
		TicketID:      tid,
		PolicyID:      policyID,
		ResponseDue:   now.Add(time.Duration(rule.ResponseTimeMinutes) * time.Minute),
		ResolutionDue: now.Add(time.Duration(rule.ResolutionTimeHours) * time.Hour),
	}
	if err := h.deps.Store.UpsertTicketSLA(ctx, sla); err != nil {
		return nil, dependencyErr(h.Kind(), "upsert sla", err)
	}
	return map[string]any{
		"ticket_id":      tid,
		"policy_id":      policyID,
		"rule_id":        rule.ID,
		"response_due":   sla.ResponseDue.Format(time.RFC3339),
		"resolution_due": sla.ResolutionDue.Format(time.RFC3339),
	}, nil
}

// --- pause_sla ---

type pauseSLAHandler struct{ deps Deps }

func (h *pauseSLAHandler) Kind() schema.ActionKind { return schema.KindPauseSLA }

func (h *pauseSLAHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description:  "Pause the ticket's SLA clock. A no-op when already paused or untracked.",
		ConfigSchema: json.RawMessage(ticketOnlySchema),
	}
}

func (h *pauseSLAHandler) Validate(map[string]any) error { return nil }

func (h *pauseSLAHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	paused, err := h.deps.Store.PauseTicketSLA(ctx, tid, h.deps.now())
	if err != nil {
		return nil, dependencyErr(h.Kind(), "pause sla", err)
	}
	return map[string]any{"ticket_id": tid, "paused": paused}, nil
}

// --- resume_sla ---

type resumeSLAHandler struct{ deps Deps }

func (h *resumeSLAHandler) Kind() schema.ActionKind { return schema.KindResumeSLA }

func (h *resumeSLAHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description:  "Resume the ticket's SLA clock, accumulating the paused time.",
		ConfigSchema: json.RawMessage(ticketOnlySchema),
	}
}

func (h *resumeSLAHandler) Validate(map[string]any) error { return nil }

func (h *resumeSLAHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	res, err := h.deps.Store.ResumeTicketSLA(ctx, tid, h.deps.now())
	if err != nil {
		return nil, dependencyErr(h.Kind(), "resume sla", err)
	}
	if res == nil {
		return map[string]any{"ticket_id": tid, "resumed": false}, nil
	}
	return map[string]any{
		"ticket_id":            tid,
		"resumed":              true,
		"paused_seconds":       res.PausedSeconds,
		"total_paused_seconds": res.TotalPausedSeconds,
	}, nil
}

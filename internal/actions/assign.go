package actions

import (
	"context"
	"encoding/json"

	"github.com/rendis/ticketflow/internal/assignment"
	"github.com/rendis/ticketflow/pkg/schema"
)

// AssignmentHandlers returns the load-balancing assignment handlers.
func AssignmentHandlers(deps Deps) []Handler {
	return []Handler{
		&assignGroupHandler{deps: deps},
		&assignListHandler{deps: deps, kind: schema.KindAssignRoundRobin, description: "Assign to the next user in a rotating list."},
		&assignListHandler{deps: deps, kind: schema.KindAssignByWorkload, description: "Assign to the listed user with the fewest open tickets."},
		&assignSkillHandler{deps: deps},
	}
}

const userListType = `{"type": ["array", "string"], "items": ` + idType + `}`

// --- assign_to_group ---

type assignGroupHandler struct{ deps Deps }

func (h *assignGroupHandler) Kind() schema.ActionKind { return schema.KindAssignToGroup }

func (h *assignGroupHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description:  "Route the ticket to a group.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {"ticket_id": ` + idType + `, "group_id": ` + idType + `}}`),
	}
}

func (h *assignGroupHandler) Validate(config map[string]any) error {
	return requireParams(h.Kind(), config, "group_id")
}

func (h *assignGroupHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	d, err := h.deps.assigner.Group(ctx, tid, stringParam(in.Config, "group_id", ""))
	if err != nil {
		return nil, dependencyErr(h.Kind(), "assign group", err)
	}
	return d.Output(), nil
}

// --- assign_round_robin / assign_by_workload ---

type assignListHandler struct {
	deps        Deps
	kind        schema.ActionKind
	description string
}

func (h *assignListHandler) Kind() schema.ActionKind { return h.kind }

func (h *assignListHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description:  h.description,
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {"ticket_id": ` + idType + `, "user_ids": ` + userListType + `}}`),
	}
}

func (h *assignListHandler) Validate(config map[string]any) error {
	if len(stringListParam(config, "user_ids")) == 0 {
		return missingConfig(h.kind, "user_ids")
	}
	return nil
}

func (h *assignListHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.kind, h.deps); err != nil {
		return nil, err
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	users := stringListParam(in.Config, "user_ids")

	var d *assignment.Decision
	if h.kind == schema.KindAssignRoundRobin {
		d, err = h.deps.assigner.RoundRobin(ctx, tid, users)
	} else {
		d, err = h.deps.assigner.Workload(ctx, tid, users)
	}
	if err != nil {
		return nil, dependencyErr(h.kind, "assign", err)
	}
	return d.Output(), nil
}

// --- assign_by_skill ---

type assignSkillHandler struct{ deps Deps }

func (h *assignSkillHandler) Kind() schema.ActionKind { return schema.KindAssignBySkill }

func (h *assignSkillHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description: "Assign to the active user matching the most required skills.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {"ticket_id": ` + idType + `,
			"skills": {"type": ["array", "string"], "items": {"type": "string"}}}}`),
	}
}

func (h *assignSkillHandler) Validate(config map[string]any) error {
	if len(stringListParam(config, "skills")) == 0 {
		return missingConfig(h.Kind(), "skills")
	}
	return nil
}

func (h *assignSkillHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	skills := stringListParam(in.Config, "skills")
	d, err := h.deps.assigner.Skill(ctx, tid, skills)
	if err != nil {
		return nil, dependencyErr(h.Kind(), "assign by skill", err)
	}
	out := d.Output()
	out["skills"] = skills
	return out, nil
}

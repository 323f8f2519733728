package actions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rendis/ticketflow/internal/store"
	"github.com/rendis/ticketflow/pkg/schema"
)

// SystemAuthor is the author recorded on comments written by actions.
const SystemAuthor = "system"

// TicketHandlers returns the ticket mutation handlers.
func TicketHandlers(deps Deps) []Handler {
	return []Handler{
		&assignTicketHandler{deps: deps},
		&updateStatusHandler{deps: deps},
		&updatePriorityHandler{deps: deps},
		&addCommentHandler{deps: deps},
		&addTagHandler{deps: deps},
		&removeTagHandler{deps: deps},
		&escalateHandler{deps: deps},
	}
}

const idType = `{"type": ["string", "integer"]}`

var ticketTargetProp = `"ticket_id": ` + idType

// --- assign_ticket ---

type assignTicketHandler struct{ deps Deps }

func (h *assignTicketHandler) Kind() schema.ActionKind { return schema.KindAssignTicket }

func (h *assignTicketHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description:  "Assign the ticket to a user.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {` + ticketTargetProp + `, "user_id": ` + idType + `}}`),
	}
}

func (h *assignTicketHandler) Validate(config map[string]any) error {
	return requireParams(h.Kind(), config, "user_id")
}

func (h *assignTicketHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	d, err := h.deps.assigner.Direct(ctx, tid, stringParam(in.Config, "user_id", ""))
	if err != nil {
		return nil, dependencyErr(h.Kind(), "assign", err)
	}
	return d.Output(), nil
}

// --- update_ticket_status ---

type updateStatusHandler struct{ deps Deps }

func (h *updateStatusHandler) Kind() schema.ActionKind { return schema.KindUpdateTicketStatus }

func (h *updateStatusHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description:  "Set the ticket status.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {` + ticketTargetProp + `, "status": {"type": "string"}}}`),
	}
}

func (h *updateStatusHandler) Validate(config map[string]any) error {
	return requireParams(h.Kind(), config, "status")
}

func (h *updateStatusHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	return setTicketAttribute(ctx, h.deps, h.Kind(), in, "status",
		func(t *store.Ticket) string { return t.Status },
		h.deps.Store.UpdateTicketStatus)
}

// --- update_ticket_priority ---

type updatePriorityHandler struct{ deps Deps }

func (h *updatePriorityHandler) Kind() schema.ActionKind { return schema.KindUpdateTicketPriority }

func (h *updatePriorityHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description:  "Set the ticket priority.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {` + ticketTargetProp + `, "priority": {"type": "string"}}}`),
	}
}

func (h *updatePriorityHandler) Validate(config map[string]any) error {
	return requireParams(h.Kind(), config, "priority")
}

func (h *updatePriorityHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	return setTicketAttribute(ctx, h.deps, h.Kind(), in, "priority",
		func(t *store.Ticket) string { return t.Priority },
		h.deps.Store.UpdateTicketPriority)
}

// setTicketAttribute reads the previous value, writes the new one and reports both.
func setTicketAttribute(
	ctx context.Context,
	deps Deps,
	kind schema.ActionKind,
	in Input,
	key string,
	current func(*store.Ticket) string,
	update func(ctx context.Context, ticketID, value string) error,
) (map[string]any, error) {
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	ticket, err := deps.Store.GetTicket(ctx, tid)
	if err != nil {
		return nil, dependencyErr(kind, "load ticket", err)
	}
	value := stringParam(in.Config, key, "")
	if err := update(ctx, tid, value); err != nil {
		return nil, dependencyErr(kind, "update ticket", err)
	}
	out := map[string]any{"ticket_id": tid, key: value}
	out["previous_"+key] = current(ticket)
	return out, nil
}

// --- add_ticket_comment ---

type addCommentHandler struct{ deps Deps }

func (h *addCommentHandler) Kind() schema.ActionKind { return schema.KindAddTicketComment }

func (h *addCommentHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description: "Append a system comment to the ticket.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {` + ticketTargetProp + `,
			"comment": {"type": "string"},
			"internal": {"type": ["boolean", "string"]}}}`),
	}
}

func (h *addCommentHandler) Validate(config map[string]any) error {
	return requireParams(h.Kind(), config, "comment")
}

func (h *addCommentHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	c := &store.Comment{
		TicketID:       tid,
		Author:         SystemAuthor,
		Body:           stringParam(in.Config, "comment", ""),
		Internal:       boolParam(in.Config, "internal", false),
		IdempotencyKey: in.IdempotencyKey,
	}
	created, err := h.deps.Store.AddComment(ctx, c)
	if err != nil {
		return nil, dependencyErr(h.Kind(), "add comment", err)
	}
	return map[string]any{
		"ticket_id": tid,
		"internal":  c.Internal,
		"created":   created,
	}, nil
}

// --- add_ticket_tag / remove_ticket_tag ---

const tagConfigSchema = `{"type": "object", "properties": {"ticket_id": ` + idType + `, "tag": {"type": "string"}}}`

type addTagHandler struct{ deps Deps }

func (h *addTagHandler) Kind() schema.ActionKind { return schema.KindAddTicketTag }

func (h *addTagHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description:  "Link a tag to the ticket, creating the tag if needed.",
		ConfigSchema: json.RawMessage(tagConfigSchema),
	}
}

func (h *addTagHandler) Validate(config map[string]any) error {
	return requireParams(h.Kind(), config, "tag")
}

func (h *addTagHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	tag := stringParam(in.Config, "tag", "")
	linked, err := h.deps.Store.AddTag(ctx, tid, tag)
	if err != nil {
		return nil, dependencyErr(h.Kind(), "add tag", err)
	}
	return map[string]any{"ticket_id": tid, "tag": tag, "linked": linked}, nil
}

type removeTagHandler struct{ deps Deps }

func (h *removeTagHandler) Kind() schema.ActionKind { return schema.KindRemoveTicketTag }

func (h *removeTagHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description:  "Unlink a tag from the ticket.",
		ConfigSchema: json.RawMessage(tagConfigSchema),
	}
}

func (h *removeTagHandler) Validate(config map[string]any) error {
	return requireParams(h.Kind(), config, "tag")
}

func (h *removeTagHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	tag := stringParam(in.Config, "tag", "")
	removed, err := h.deps.Store.RemoveTag(ctx, tid, tag)
	if err != nil {
		return nil, dependencyErr(h.Kind(), "remove tag", err)
	}
	return map[string]any{"ticket_id": tid, "tag": tag, "removed": removed}, nil
}

// --- escalate_ticket ---

type escalateHandler struct{ deps Deps }

func (h *escalateHandler) Kind() schema.ActionKind { return schema.KindEscalateTicket }

func (h *escalateHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description: "Reassign the ticket, flag it escalated and record a comment.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {` + ticketTargetProp + `,
			"to_user_id": ` + idType + `,
			"reason": {"type": "string"}}}`),
	}
}

func (h *escalateHandler) Validate(config map[string]any) error {
	return requireParams(h.Kind(), config, "to_user_id")
}

func (h *escalateHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	to := stringParam(in.Config, "to_user_id", "")
	reason := stringParam(in.Config, "reason", "")

	user, err := h.deps.Store.GetUser(ctx, to)
	if err != nil {
		return nil, dependencyErr(h.Kind(), "load user", err)
	}
	if err := h.deps.Store.EscalateTicket(ctx, tid, to, in.IdempotencyKey); err != nil {
		return nil, dependencyErr(h.Kind(), "escalate", err)
	}

	name := user.Name
	if name == "" {
		name = user.ID
	}
	body := fmt.Sprintf("Ticket escalated to %s", name)
	if reason != "" {
		body += ": " + reason
	}
	commentKey := ""
	if in.IdempotencyKey != "" {
		commentKey = in.IdempotencyKey + "/escalation"
	}
	if _, err := h.deps.Store.AddComment(ctx, &store.Comment{
		TicketID:       tid,
		Author:         SystemAuthor,
		Body:           body,
		Internal:       true,
		IdempotencyKey: commentKey,
	}); err != nil {
		return nil, dependencyErr(h.Kind(), "record escalation comment", err)
	}
	return map[string]any{"ticket_id": tid, "escalated_to": to, "reason": reason}, nil
}

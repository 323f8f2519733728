package actions

import (
	"context"
	"encoding/json"

	"github.com/rendis/ticketflow/internal/store"
	"github.com/rendis/ticketflow/pkg/schema"
)

// FieldHandlers returns the generic column handlers. Fields are written as
// "table.column" or a bare ticket column and must be whitelisted by the store.
func FieldHandlers(deps Deps) []Handler {
	return []Handler{
		&setFieldHandler{deps: deps},
		&incrementFieldHandler{deps: deps},
		&copyFieldHandler{deps: deps},
	}
}

// --- set_field ---

type setFieldHandler struct{ deps Deps }

func (h *setFieldHandler) Kind() schema.ActionKind { return schema.KindSetField }

func (h *setFieldHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description: "Write a value to a ticket column.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {"ticket_id": ` + idType + `,
			"field": {"type": "string"},
			"value": {"type": ["string", "number", "boolean", "null"]}}}`),
	}
}

func (h *setFieldHandler) Validate(config map[string]any) error {
	if err := requireParams(h.Kind(), config, "field"); err != nil {
		return err
	}
	if _, ok := config["value"]; !ok {
		return missingConfig(h.Kind(), "value")
	}
	return nil
}

func (h *setFieldHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	ref, err := store.ParseFieldRef(stringParam(in.Config, "field", ""))
	if err != nil {
		return nil, err
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	value := in.Config["value"]
	if err := h.deps.Store.WriteField(ctx, ref, tid, value); err != nil {
		return nil, dependencyErr(h.Kind(), "write field", err)
	}
	return map[string]any{"ticket_id": tid, "field": ref.String(), "value": value}, nil
}

// --- increment_field ---

type incrementFieldHandler struct{ deps Deps }

func (h *incrementFieldHandler) Kind() schema.ActionKind { return schema.KindIncrementField }

func (h *incrementFieldHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description: "Add an amount to a numeric ticket column.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {"ticket_id": ` + idType + `,
			"field": {"type": "string"},
			"amount": {"type": ["number", "string"]}}}`),
	}
}

func (h *incrementFieldHandler) Validate(config map[string]any) error {
	if err := requireParams(h.Kind(), config, "field"); err != nil {
		return err
	}
	if _, ok := floatParam(config, "amount", 1); !ok {
		return schema.NewErrorf(schema.ErrCodeConfig, "%s: amount must be a number", h.Kind())
	}
	return nil
}

func (h *incrementFieldHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	ref, err := store.ParseFieldRef(stringParam(in.Config, "field", ""))
	if err != nil {
		return nil, err
	}
	if !ref.Numeric() {
		return nil, schema.NewErrorf(schema.ErrCodeUnsupportedField, "%s: field %s is not numeric", h.Kind(), ref)
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	amount, _ := floatParam(in.Config, "amount", 1)
	res, err := h.deps.Store.IncrementField(ctx, ref, tid, amount, in.IdempotencyKey)
	if err != nil {
		return nil, dependencyErr(h.Kind(), "increment field", err)
	}
	return map[string]any{
		"ticket_id": tid,
		"field":     ref.String(),
		"amount":    amount,
		"value":     res.Value,
		"applied":   res.Applied,
	}, nil
}

// --- copy_field ---

type copyFieldHandler struct{ deps Deps }

func (h *copyFieldHandler) Kind() schema.ActionKind { return schema.KindCopyField }

func (h *copyFieldHandler) Schema() HandlerSchema {
	return HandlerSchema{
		Description: "Copy one ticket column into another.",
		ConfigSchema: json.RawMessage(`{"type": "object", "properties": {"ticket_id": ` + idType + `,
			"from": {"type": "string"},
			"to": {"type": "string"}}}`),
	}
}

func (h *copyFieldHandler) Validate(config map[string]any) error {
	return requireParams(h.Kind(), config, "from", "to")
}

func (h *copyFieldHandler) Execute(ctx context.Context, in Input) (map[string]any, error) {
	if err := requireStore(h.Kind(), h.deps); err != nil {
		return nil, err
	}
	from, err := store.ParseFieldRef(stringParam(in.Config, "from", ""))
	if err != nil {
		return nil, err
	}
	to, err := store.ParseFieldRef(stringParam(in.Config, "to", ""))
	if err != nil {
		return nil, err
	}
	tid, err := ticketID(in)
	if err != nil {
		return nil, err
	}
	value, err := h.deps.Store.ReadField(ctx, from, tid)
	if err != nil {
		return nil, dependencyErr(h.Kind(), "read field", err)
	}
	if err := h.deps.Store.WriteField(ctx, to, tid, value); err != nil {
		return nil, dependencyErr(h.Kind(), "write field", err)
	}
	return map[string]any{"ticket_id": tid, "from": from.String(), "to": to.String(), "value": value}, nil
}

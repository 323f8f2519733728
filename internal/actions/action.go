package actions

import (
	"context"
	"encoding/json"

	"github.com/rendis/ticketflow/pkg/schema"
)

// Handler performs the side effect of one action kind.
type Handler interface {
	Kind() schema.ActionKind
	Schema() HandlerSchema
	// Validate checks the resolved config for required keys before Execute.
	Validate(config map[string]any) error
	Execute(ctx context.Context, input Input) (map[string]any, error)
}

// HandlerRegistry manages the lookup of available handlers.
type HandlerRegistry interface {
	Register(h Handler) error
	Get(kind schema.ActionKind) (Handler, error)
	List() []HandlerInfo
}

// HandlerSchema describes the config contract of a handler.
type HandlerSchema struct {
	ConfigSchema json.RawMessage `json:"config_schema,omitempty"`
	Description  string          `json:"description,omitempty"`
}

// Input is the data a handler receives for one invocation.
type Input struct {
	// Config is the action config with placeholders already resolved.
	Config map[string]any
	Exec   *schema.ExecutionContext
	Action string
	Index  int
	// IdempotencyKey is stable across retries of the same action in the same
	// instance. Handlers use it to make appends and outbound calls repeatable.
	IdempotencyKey string
}

// HandlerInfo is a summary of a registered handler for listing.
type HandlerInfo struct {
	Kind        schema.ActionKind `json:"kind"`
	Description string            `json:"description,omitempty"`
}

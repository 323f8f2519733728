package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rendis/ticketflow/internal/actions"
	"github.com/rendis/ticketflow/pkg/schema"
)

// fakeHandler records every invocation and delegates to fn.
type fakeHandler struct {
	kind   schema.ActionKind
	schema json.RawMessage
	fn     func(call int, in actions.Input) (map[string]any, error)

	mu    sync.Mutex
	calls []actions.Input
}

func (h *fakeHandler) Kind() schema.ActionKind { return h.kind }

func (h *fakeHandler) Schema() actions.HandlerSchema {
	return actions.HandlerSchema{Description: "fake", ConfigSchema: h.schema}
}

func (h *fakeHandler) Validate(map[string]any) error { return nil }

func (h *fakeHandler) Execute(_ context.Context, in actions.Input) (map[string]any, error) {
	h.mu.Lock()
	h.calls = append(h.calls, in)
	n := len(h.calls)
	h.mu.Unlock()
	if h.fn == nil {
		return map[string]any{"call": n}, nil
	}
	return h.fn(n, in)
}

func (h *fakeHandler) Calls() []actions.Input {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]actions.Input(nil), h.calls...)
}

func newRegistry(t *testing.T, hs ...actions.Handler) *actions.Registry {
	t.Helper()
	reg := actions.NewRegistry()
	for _, h := range hs {
		require.NoError(t, reg.Register(h))
	}
	return reg
}

func testContext(payload map[string]any) *schema.ExecutionContext {
	return &schema.ExecutionContext{
		InstanceID:   "inst-1",
		WorkflowID:   "wf-1",
		EventPayload: payload,
		Variables:    map[string]any{},
	}
}

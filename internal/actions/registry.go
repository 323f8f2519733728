package actions

import (
	"sort"
	"sync"

	"github.com/rendis/ticketflow/pkg/schema"
)

// Registry is the concrete thread-safe HandlerRegistry implementation.
type Registry struct {
	mu       sync.RWMutex
	handlers map[schema.ActionKind]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[schema.ActionKind]Handler)}
}

// Register adds a handler. Unknown kinds and duplicates are rejected.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return schema.NewError(schema.ErrCodeConfig, "handler is nil")
	}
	kind := h.Kind()
	if !kind.Known() {
		return schema.NewErrorf(schema.ErrCodeConfig, "handler kind %q is not an action kind", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[kind]; exists {
		return schema.NewErrorf(schema.ErrCodeConfig, "handler for %q already registered", kind)
	}
	r.handlers[kind] = h
	return nil
}

// Get retrieves the handler for kind.
func (r *Registry) Get(kind schema.ActionKind) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[kind]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "no handler registered for action type %q", kind)
	}
	return h, nil
}

// List returns info for all registered handlers, sorted by kind.
func (r *Registry) List() []HandlerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]HandlerInfo, 0, len(r.handlers))
	for kind, h := range r.handlers {
		infos = append(infos, HandlerInfo{Kind: kind, Description: h.Schema().Description})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Kind < infos[j].Kind })
	return infos
}

// Has checks if a handler is registered for kind.
func (r *Registry) Has(kind schema.ActionKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[kind]
	return ok
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Missing returns the action kinds with no registered handler.
func (r *Registry) Missing() []schema.ActionKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []schema.ActionKind
	for _, k := range schema.AllKinds() {
		if _, ok := r.handlers[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

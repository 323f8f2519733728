package actions

import (
	"context"
	"log/slog"
	"time"

	"github.com/rendis/ticketflow/internal/assignment"
	"github.com/rendis/ticketflow/internal/expressions"
	"github.com/rendis/ticketflow/internal/logging"
	"github.com/rendis/ticketflow/internal/notify"
	"github.com/rendis/ticketflow/internal/store"
	"github.com/rendis/ticketflow/internal/streaming"
	"github.com/rendis/ticketflow/pkg/schema"
)

// WorkflowStart asks the scheduler to start a nested workflow run.
type WorkflowStart struct {
	WorkflowID       string         `json:"workflow_id"`
	ParentInstanceID string         `json:"parent_instance_id"`
	ParentWorkflowID string         `json:"parent_workflow_id"`
	EventPayload     map[string]any `json:"event_payload,omitempty"`
	Variables        map[string]any `json:"variables,omitempty"`
}

// WorkflowStarter signals the upstream scheduler. Implementations must not
// wait for the nested run to finish.
type WorkflowStarter interface {
	StartWorkflow(ctx context.Context, req WorkflowStart) error
}

// WorkflowStarterFunc adapts a function to WorkflowStarter.
type WorkflowStarterFunc func(ctx context.Context, req WorkflowStart) error

func (f WorkflowStarterFunc) StartWorkflow(ctx context.Context, req WorkflowStart) error {
	return f(ctx, req)
}

// Deps holds the collaborators injected into the built-in handlers.
type Deps struct {
	Store   store.Store
	Mailer  notify.Mailer
	Chat    notify.ChatNotifier
	Hub     streaming.Hub
	Starter WorkflowStarter
	HTTP    HTTPConfig
	JQ      *expressions.GoJQEngine
	Expr    *expressions.ExprEngine
	// MaxWait caps the seconds a wait action may request. Zero means no cap.
	MaxWait time.Duration
	Clock   func() time.Time
	Logger  *slog.Logger

	assigner *assignment.Assigner
}

func (d Deps) withDefaults() Deps {
	if d.JQ == nil {
		d.JQ = expressions.NewGoJQEngine()
	}
	if d.Expr == nil {
		d.Expr = expressions.NewExprEngine()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	d.Logger = logging.OrDefault(d.Logger).With("module", "actions")
	if d.Store != nil {
		d.assigner = assignment.NewAssigner(d.Store)
	}
	d.HTTP = d.HTTP.withDefaults()
	return d
}

func (d Deps) now() time.Time { return d.Clock().UTC() }

// BuiltinHandlers returns one handler per action kind.
func BuiltinHandlers(deps Deps) []Handler {
	deps = deps.withDefaults()

	all := make([]Handler, 0, len(schema.AllKinds()))
	all = append(all, TicketHandlers(deps)...)
	all = append(all, AssignmentHandlers(deps)...)
	all = append(all, NotificationHandlers(deps)...)
	all = append(all, HTTPHandlers(deps)...)
	all = append(all, SLAHandlers(deps)...)
	all = append(all, FieldHandlers(deps)...)
	all = append(all, FlowHandlers(deps)...)
	return all
}

// RegisterBuiltins registers all built-in handlers in the given registry.
func RegisterBuiltins(reg *Registry, deps Deps) error {
	for _, h := range BuiltinHandlers(deps) {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}

func requireStore(kind schema.ActionKind, d Deps) error {
	if d.Store == nil {
		return schema.NewErrorf(schema.ErrCodeDependency, "%s: ticket store is not configured", kind)
	}
	return nil
}

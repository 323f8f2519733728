package engine

import (
	"context"

	"github.com/rendis/ticketflow/pkg/schema"
)

// unknownKind handles action types outside the closed vocabulary, which
// older workflow definitions may still carry. They succeed as no-ops so a
// stale definition never fails an instance.
func (e *Executor) unknownKind(ctx context.Context, action *schema.Action) *schema.ActionResult {
	e.logger.WarnContext(ctx, "unknown action type, skipping", "type", action.Type, "action_name", action.Name)
	return &schema.ActionResult{Success: true, Output: map[string]any{}}
}

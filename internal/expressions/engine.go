package expressions

import "context"

// Engine evaluates an expression against a JSON-shaped input.
// Two implementations: jq (response extraction) and Expr (success predicates).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data any) (any, error)
}

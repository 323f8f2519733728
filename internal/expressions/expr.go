package expressions

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rendis/ticketflow/pkg/schema"
)

// ExprEngine evaluates expr-lang expressions. The data map becomes the
// expression environment, so its keys are top-level variables.
type ExprEngine struct {
	programs *compileCache[*vm.Program]
}

// NewExprEngine creates a new Expr engine.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{programs: newCompileCache(compileExpr)}
}

func (e *ExprEngine) Name() string { return "expr" }

// Evaluate compiles (cached) and runs expression. data must be a map or nil.
func (e *ExprEngine) Evaluate(_ context.Context, expression string, data any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeConfig, "empty expr expression")
	}
	env, ok := data.(map[string]any)
	if !ok {
		if data != nil {
			return nil, schema.NewErrorf(schema.ErrCodeConfig, "expr environment must be an object, got %T", data)
		}
		env = map[string]any{}
	}

	prg, err := e.programs.get(expression)
	if err != nil {
		return nil, err
	}
	out, err := vm.Run(prg, env)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeDependency,
			"expr evaluation failed for %q: %s", expression, err.Error()).WithCause(err)
	}
	return out, nil
}

// EvaluateBool is Evaluate for predicates; a non-boolean result is a config error.
func (e *ExprEngine) EvaluateBool(ctx context.Context, expression string, data map[string]any) (bool, error) {
	out, err := e.Evaluate(ctx, expression, data)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeConfig,
			"expression %q must evaluate to a boolean, got %s", expression, fmt.Sprintf("%T", out))
	}
	return b, nil
}

func compileExpr(expression string) (*vm.Program, error) {
	// Environment types vary per response, so compile untyped.
	prg, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfig,
			"expr compile error in %q: %s", expression, err.Error()).WithCause(err)
	}
	return prg, nil
}

var _ Engine = (*ExprEngine)(nil)

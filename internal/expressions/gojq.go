package expressions

import (
	"context"
	"encoding/json"

	"github.com/itchyny/gojq"

	"github.com/rendis/ticketflow/pkg/schema"
)

// GoJQEngine runs the jq `extract` expressions of outbound calls against
// response bodies.
type GoJQEngine struct {
	programs *compileCache[*gojq.Code]
}

// NewGoJQEngine creates a new jq engine.
func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{programs: newCompileCache(compileJQ)}
}

func (e *GoJQEngine) Name() string { return "jq" }

// Evaluate runs expression against data. One output is returned as-is,
// several are collected into a slice and none yields nil.
func (e *GoJQEngine) Evaluate(ctx context.Context, expression string, data any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeConfig, "empty jq expression")
	}
	code, err := e.programs.get(expression)
	if err != nil {
		return nil, err
	}
	input, err := jsonValue(data)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "jq input is not JSON: %v", err).WithCause(err)
	}

	var results []any
	iter := code.RunWithContext(ctx, input)
	for v, ok := iter.Next(); ok; v, ok = iter.Next() {
		if err, isErr := v.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeDependency, "extract %q failed: %v", expression, err).WithCause(err)
		}
		results = append(results, v)
	}
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

func compileJQ(expression string) (*gojq.Code, error) {
	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "extract %q: %v", expression, err).WithCause(err)
	}
	// No environment: $ENV must not leak process secrets into responses.
	code, err := gojq.Compile(query, gojq.WithEnvironLoader(func() []string { return nil }))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "extract %q: %v", expression, err).WithCause(err)
	}
	return code, nil
}

// jsonValue brings data into the shapes jq accepts. Decoded response bodies
// already are; anything else goes through a JSON round trip.
func jsonValue(data any) (any, error) {
	switch data.(type) {
	case nil, string, bool, float64:
		return data, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var v any
	err = json.Unmarshal(b, &v)
	return v, err
}

var _ Engine = (*GoJQEngine)(nil)

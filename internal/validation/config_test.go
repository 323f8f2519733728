package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/ticketflow/pkg/schema"
)

const incrementSchema = `{
  "type": "object",
  "properties": {
    "field":  {"type": "string", "minLength": 1},
    "amount": {"type": "number"}
  },
  "required": ["field"]
}`

func TestValidate_Valid(t *testing.T) {
	v := NewConfigValidator()
	err := v.Validate(map[string]any{"field": "reopen_count", "amount": 2}, []byte(incrementSchema))
	assert.NoError(t, err)
}

func TestValidate_EmptySchemaAcceptsAnything(t *testing.T) {
	v := NewConfigValidator()
	assert.NoError(t, v.Validate(map[string]any{"x": []any{1}}, nil))
	assert.NoError(t, v.Validate(nil, nil))
}

func TestValidate_WrongType(t *testing.T) {
	v := NewConfigValidator()
	err := v.Validate(map[string]any{"field": "reopen_count", "amount": "two"}, []byte(incrementSchema))
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeConfig))
	assert.Contains(t, err.Error(), "/amount")
}

func TestValidate_MissingRequired(t *testing.T) {
	v := NewConfigValidator()
	err := v.Validate(map[string]any{}, []byte(incrementSchema))
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeConfig))
	assert.Contains(t, err.Error(), "field")
}

func TestValidate_NilConfigTreatedAsEmpty(t *testing.T) {
	v := NewConfigValidator()
	err := v.Validate(nil, []byte(`{"type":"object"}`))
	assert.NoError(t, err)
}

func TestValidate_BrokenSchema(t *testing.T) {
	v := NewConfigValidator()
	err := v.Validate(map[string]any{}, []byte(`{"type": 12`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config schema")
}

func TestValidate_CachesBySchemaContent(t *testing.T) {
	v := NewConfigValidator()
	require.NoError(t, v.Compile([]byte(incrementSchema)))
	require.NoError(t, v.Compile([]byte(incrementSchema)))
	require.NoError(t, v.Compile([]byte(`{"type":"object"}`)))
	assert.Len(t, v.cache, 2)
}

package expressions

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/rendis/ticketflow/pkg/schema"
)

func testContext() *schema.ExecutionContext {
	return &schema.ExecutionContext{
		InstanceID: "inst-1",
		WorkflowID: "wf-1",
		EventPayload: map[string]any{
			"ticket_id": "T1",
			"priority":  float64(3),
			"urgent":    true,
			"ticket": map[string]any{
				"subject": "Printer on fire",
				"requester": map[string]any{
					"email": "ana@example.com",
				},
			},
			"tags": []any{"a", "b"},
		},
		Variables: map[string]any{
			"approver":     "U9",
			"ticket.owner": "U2",
			"score":        json.Number("12.5"),
		},
	}
}

func TestResolve_SimplePlaceholder(t *testing.T) {
	got := Resolve("ticket {{ticket_id}}", testContext())
	assert.Equal(t, "ticket T1", got)
}

func TestResolve_NestedPayloadPath(t *testing.T) {
	got := Resolve("{{ticket.requester.email}}", testContext())
	assert.Equal(t, "ana@example.com", got)
}

func TestResolve_NumberAndBool(t *testing.T) {
	ec := testContext()
	assert.Equal(t, "p3", Resolve("p{{priority}}", ec))
	assert.Equal(t, "true", Resolve("{{urgent}}", ec))
	assert.Equal(t, "12.5", Resolve("{{score}}", ec))
}

func TestResolve_FractionalNumber(t *testing.T) {
	ec := &schema.ExecutionContext{EventPayload: map[string]any{"ratio": 0.25}}
	assert.Equal(t, "0.25", Resolve("{{ratio}}", ec))
}

func TestResolve_FallsBackToVariables(t *testing.T) {
	ec := testContext()
	assert.Equal(t, "U9", Resolve("{{approver}}", ec))
	// Dotted variable names are looked up flat.
	assert.Equal(t, "U2", Resolve("{{ticket.owner}}", ec))
}

func TestResolve_PayloadWinsOverVariables(t *testing.T) {
	ec := testContext()
	ec.Variables["ticket_id"] = "SHADOW"
	assert.Equal(t, "T1", Resolve("{{ticket_id}}", ec))
}

func TestResolve_MissingLeftLiteral(t *testing.T) {
	ec := &schema.ExecutionContext{}
	assert.Equal(t, "{{missing.path}}", Resolve("{{missing.path}}", ec))
	assert.Equal(t, "{{missing.path}}", Resolve("{{missing.path}}", nil))
}

func TestResolve_NonScalarLeftLiteral(t *testing.T) {
	ec := testContext()
	assert.Equal(t, "{{ticket}}", Resolve("{{ticket}}", ec))
	assert.Equal(t, "{{tags}}", Resolve("{{tags}}", ec))
}

func TestResolve_MultiplePlaceholders(t *testing.T) {
	got := Resolve("{{ticket_id}}/{{approver}}/{{nope}}/{{ticket_id}}", testContext())
	assert.Equal(t, "T1/U9/{{nope}}/T1", got)
}

func TestResolve_WhitespaceInsideBraces(t *testing.T) {
	assert.Equal(t, "T1", Resolve("{{ ticket_id }}", testContext()))
}

func TestResolve_ObjectsAndArrays(t *testing.T) {
	in := map[string]any{
		"user_id":  "{{approver}}",
		"{{keys}}": "kept",
		"list":     []any{"{{ticket_id}}", float64(7), nil, true},
		"nested":   map[string]any{"subject": "Re: {{ticket.subject}}"},
	}

	got := Resolve(in, testContext()).(map[string]any)

	assert.Equal(t, "U9", got["user_id"])
	assert.Equal(t, "kept", got["{{keys}}"])
	assert.Equal(t, []any{"T1", float64(7), nil, true}, got["list"])
	assert.Equal(t, "Re: Printer on fire", got["nested"].(map[string]any)["subject"])

	// The input is not mutated.
	assert.Equal(t, "{{approver}}", in["user_id"])
}

func TestResolve_NonStringScalarsUnchanged(t *testing.T) {
	ec := testContext()
	assert.Equal(t, float64(4), Resolve(float64(4), ec))
	assert.Equal(t, false, Resolve(false, ec))
	assert.Nil(t, Resolve(nil, ec))
}

func TestResolve_PlaceholderInValueNotSubstituted(t *testing.T) {
	ec := &schema.ExecutionContext{EventPayload: map[string]any{
		"subject": "{{secret}}",
		"secret":  "hunter2",
	}}
	assert.Equal(t, "{{subject}}", Resolve("{{subject}}", ec))
}

func TestResolve_AssembledPlaceholderSettles(t *testing.T) {
	ec := &schema.ExecutionContext{EventPayload: map[string]any{"a": "x", "x": "y"}}
	first := Resolve("{{{{a}}}}", ec)
	assert.Equal(t, first, Resolve(first, ec))
}

func TestResolve_Idempotent(t *testing.T) {
	ec := testContext()
	in := map[string]any{"a": "{{ticket_id}} {{missing}}", "b": []any{"{{approver}}"}}
	once := Resolve(in, ec)
	assert.Equal(t, once, Resolve(once, ec))
}

var fragments = []string{
	"{{", "}}", "{", "}", "a", "b", "x", ".", " ", "-",
	"{{a}}", "{{b.c}}", "{{missing}}", "{{x}}", "text",
}

var payloadValues = []any{
	"x", "a", "{{a}}", "{", "}}", "{{", "b}}", "plain", float64(1), true, nil,
	map[string]any{"c": "{{x}}"}, map[string]any{"c": "deep"},
}

func TestResolve_IdempotentProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		parts := rapid.SliceOfN(rapid.SampledFrom(fragments), 0, 12).Draw(t, "parts")
		input := strings.Join(parts, "")

		ec := &schema.ExecutionContext{
			EventPayload: map[string]any{
				"a": rapid.SampledFrom(payloadValues).Draw(t, "a"),
				"b": rapid.SampledFrom(payloadValues).Draw(t, "b"),
				"x": rapid.SampledFrom(payloadValues).Draw(t, "x"),
			},
			Variables: map[string]any{
				"missing": rapid.SampledFrom(payloadValues).Draw(t, "missing"),
				"b.c":     rapid.SampledFrom(payloadValues).Draw(t, "b.c"),
			},
		}

		once := Resolve(input, ec)
		twice := Resolve(once, ec)
		if once != twice {
			t.Fatalf("not idempotent: %q -> %q -> %q", input, once, twice)
		}
	})
}

func TestLookup_ReturnsRawValues(t *testing.T) {
	ec := testContext()

	v, ok := Lookup("ticket.requester", ec)
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"email": "ana@example.com"}, v)

	v, ok = Lookup("approver", ec)
	assert.True(t, ok)
	assert.Equal(t, "U9", v)

	_, ok = Lookup("ticket.nope", ec)
	assert.False(t, ok)
}

func TestHasPlaceholder(t *testing.T) {
	assert.True(t, HasPlaceholder("hi {{name}}"))
	assert.False(t, HasPlaceholder("hi {name}"))
	assert.False(t, HasPlaceholder("{{}}"))
}

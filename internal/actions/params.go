package actions

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/rendis/ticketflow/internal/expressions"
	"github.com/rendis/ticketflow/pkg/schema"
)

// Param helpers used by all handler files. Values arrive either as native JSON
// types or, when produced by a placeholder, as strings.

func stringParam(m map[string]any, key, defaultVal string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return defaultVal
	}
	if s, ok := scalarText(v); ok {
		return s
	}
	return defaultVal
}

func boolParam(m map[string]any, key string, defaultVal bool) bool {
	switch b := m[key].(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// floatParam returns the number at key. ok is false when the key is present
// but not numeric.
func floatParam(m map[string]any, key string, defaultVal float64) (float64, bool) {
	v, present := m[key]
	if !present || v == nil {
		return defaultVal, true
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// stringListParam accepts a JSON array of scalars or a comma-separated string.
func stringListParam(m map[string]any, key string) []string {
	var out []string
	switch v := m[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := scalarText(item); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func mapParam(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

// scalarText renders ids and other scalars canonically; 42.0 becomes "42".
func scalarText(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		return n, true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	case int:
		return strconv.Itoa(n), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case json.Number:
		return n.String(), true
	case bool:
		return strconv.FormatBool(n), true
	}
	return "", false
}

// requireParams reports the first key that is absent or blank.
func requireParams(kind schema.ActionKind, m map[string]any, keys ...string) error {
	for _, k := range keys {
		if strings.TrimSpace(stringParam(m, k, "")) == "" {
			return missingConfig(kind, k)
		}
	}
	return nil
}

func missingConfig(kind schema.ActionKind, key string) error {
	return schema.NewErrorf(schema.ErrCodeConfig, "%s: missing required config '%s'", kind, key)
}

// ticketID resolves the target ticket: config ticket_id first, then the
// event payload (or variables) ticket_id.
func ticketID(in Input) (string, error) {
	if id := stringParam(in.Config, "ticket_id", ""); id != "" {
		return id, nil
	}
	if raw, ok := expressions.Lookup("ticket_id", in.Exec); ok {
		if id, ok := scalarText(raw); ok && id != "" {
			return id, nil
		}
	}
	return "", schema.NewError(schema.ErrCodeConfig, "missing ticket_id in config or event payload")
}

// dependencyErr wraps a collaborator failure unless it is already typed.
func dependencyErr(kind schema.ActionKind, op string, err error) error {
	var tfErr *schema.TicketflowError
	if errors.As(err, &tfErr) {
		return err
	}
	return schema.NewErrorf(schema.ErrCodeDependency, "%s: %s: %v", kind, op, err).WithCause(err)
}


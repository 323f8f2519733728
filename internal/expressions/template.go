package expressions

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/rendis/ticketflow/pkg/schema"
)

// placeholderRe matches {{path.to.field}} tokens. Surrounding whitespace inside
// the braces is tolerated.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_\-]+(?:\.[A-Za-z0-9_\-]+)*)\s*\}\}`)

// maxResolvePasses bounds the fixpoint search in resolveString.
const maxResolvePasses = 8

// Resolve walks value and substitutes every placeholder found in its strings,
// looking each path up first in the event payload and then in the instance
// variables. Unresolvable placeholders are left untouched.
//
// Resolve never mutates value; maps and slices are copied.
func Resolve(value any, ec *schema.ExecutionContext) any {
	switch v := value.(type) {
	case string:
		return resolveString(v, ec)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Resolve(item, ec)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Resolve(item, ec)
		}
		return out
	default:
		return value
	}
}

// HasPlaceholder reports whether s contains at least one placeholder token.
func HasPlaceholder(s string) bool {
	return placeholderRe.MatchString(s)
}

// resolveString runs substitution passes until the string stops changing.
// Ordinary strings settle after one pass. Substitutions that assemble a new
// placeholder out of neighbouring text are resolved too; if no fixpoint is
// reached the input is returned as-is so that resolving twice never differs
// from resolving once.
func resolveString(s string, ec *schema.ExecutionContext) string {
	current := s
	for i := 0; i < maxResolvePasses; i++ {
		next := substitutePass(current, ec)
		if next == current {
			return current
		}
		current = next
	}
	return s
}

// substitutePass performs one left-to-right substitution over s.
func substitutePass(s string, ec *schema.ExecutionContext) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(token string) string {
		path := placeholderRe.FindStringSubmatch(token)[1]
		val, ok := lookup(path, ec)
		if !ok {
			return token
		}
		return val
	})
}

// lookup resolves path to a scalar rendered as a string. Event payload wins
// over variables. Values that carry placeholders of their own are refused so
// untrusted payload text cannot inject templates.
func lookup(path string, ec *schema.ExecutionContext) (string, bool) {
	if ec == nil {
		return "", false
	}
	if raw, ok := traverse(ec.EventPayload, path); ok {
		if s, ok := scalarString(raw); ok {
			return s, true
		}
	}
	if raw, ok := ec.Variables[path]; ok {
		if s, ok := scalarString(raw); ok {
			return s, true
		}
	}
	return "", false
}

// Lookup returns the raw JSON value at path using the same precedence as Resolve.
// Non-scalar values are returned too.
func Lookup(path string, ec *schema.ExecutionContext) (any, bool) {
	if ec == nil {
		return nil, false
	}
	if v, ok := traverse(ec.EventPayload, path); ok {
		return v, true
	}
	v, ok := ec.Variables[path]
	return v, ok
}

func traverse(root map[string]any, path string) (any, bool) {
	if root == nil {
		return nil, false
	}
	var current any = root
	for _, seg := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func scalarString(v any) (string, bool) {
	var s string
	switch n := v.(type) {
	case string:
		s = n
	case bool:
		s = strconv.FormatBool(n)
	case float64:
		s = strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		s = strconv.Itoa(n)
	case int64:
		s = strconv.FormatInt(n, 10)
	case json.Number:
		s = n.String()
	default:
		return "", false
	}
	if HasPlaceholder(s) {
		return "", false
	}
	return s, true
}

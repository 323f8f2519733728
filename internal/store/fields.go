package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rendis/ticketflow/pkg/schema"
)

// ColumnKind is the storage class of a writable column.
type ColumnKind int

const (
	ColumnText ColumnKind = iota
	ColumnInt
	ColumnBool
)

// DefaultFieldTable is used when a field reference has no table prefix.
const DefaultFieldTable = "tickets"

type fieldTable struct {
	key     string
	columns map[string]ColumnKind
}

// fieldTables is the whitelist of columns reachable through field actions.
// Every table listed here has an updated_at column.
var fieldTables = map[string]fieldTable{
	"tickets": {
		key: "id",
		columns: map[string]ColumnKind{
			"subject":          ColumnText,
			"description":      ColumnText,
			"category":         ColumnText,
			"status":           ColumnText,
			"priority":         ColumnText,
			"assigned_to":      ColumnText,
			"group_id":         ColumnText,
			"escalated":        ColumnBool,
			"reopen_count":     ColumnInt,
			"escalation_level": ColumnInt,
		},
	},
	"ticket_sla": {
		key: "ticket_id",
		columns: map[string]ColumnKind{
			"policy_id":            ColumnText,
			"total_paused_seconds": ColumnInt,
		},
	},
}

// FieldRef names one whitelisted column.
type FieldRef struct {
	Table  string
	Column string
	Kind   ColumnKind
}

func (f FieldRef) String() string { return f.Table + "." + f.Column }

// Numeric reports whether the column can be incremented.
func (f FieldRef) Numeric() bool { return f.Kind == ColumnInt }

// ParseFieldRef parses "table.column" or a bare column of the tickets table.
func ParseFieldRef(s string) (FieldRef, error) {
	raw := strings.TrimSpace(s)
	table, column := DefaultFieldTable, raw
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		table, column = raw[:i], raw[i+1:]
	}
	t, ok := fieldTables[table]
	if !ok {
		return FieldRef{}, schema.NewErrorf(schema.ErrCodeUnsupportedField, "unsupported field %q: unknown table %q", s, table)
	}
	kind, ok := t.columns[column]
	if !ok {
		return FieldRef{}, schema.NewErrorf(schema.ErrCodeUnsupportedField, "unsupported field %q", s)
	}
	return FieldRef{Table: table, Column: column, Kind: kind}, nil
}

func (f FieldRef) keyColumn() string { return fieldTables[f.Table].key }

// coerce converts a JSON value into the driver value stored in the column.
func (f FieldRef) coerce(value any) (any, error) {
	if value == nil {
		if f.Kind == ColumnText {
			return nil, nil
		}
		return nil, f.badValue(value)
	}
	switch f.Kind {
	case ColumnText:
		switch v := value.(type) {
		case string:
			return v, nil
		case bool:
			return strconv.FormatBool(v), nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(v), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case json.Number:
			return v.String(), nil
		}
	case ColumnInt:
		if n, ok := toInt64(value); ok {
			return n, nil
		}
	case ColumnBool:
		switch v := value.(type) {
		case bool:
			return boolInt(v), nil
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return boolInt(b), nil
			}
		default:
			if n, ok := toInt64(value); ok {
				return boolInt(n != 0), nil
			}
		}
	}
	return nil, f.badValue(value)
}

func (f FieldRef) badValue(value any) error {
	return schema.NewErrorf(schema.ErrCodeConfig, "value %v is not valid for field %s", value, f)
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// scanTarget returns a destination for reading the column and a function
// converting it back into a JSON value.
func (f FieldRef) scanTarget() (any, func() any) {
	switch f.Kind {
	case ColumnInt:
		var n int64
		return &n, func() any { return n }
	case ColumnBool:
		var n int64
		return &n, func() any { return n != 0 }
	default:
		var s *string
		return &s, func() any {
			if s == nil {
				return nil
			}
			return *s
		}
	}
}

func fieldNotFound(f FieldRef, rowID string) error {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s row %q not found", f.Table, rowID)
}

func quoteIdent(s string) string { return fmt.Sprintf("%q", s) }

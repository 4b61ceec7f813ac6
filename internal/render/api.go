package render

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/ankaflow/ankaflow/internal/model"
)

// API is the grab-bag object §4.B exposes to templates: date coercion,
// variable lookup with fallback, SQL tuple rendering, the setvariable and
// error side-effecting calls, peek, and the bare int() conversion. It is
// bound into every Renderer's FuncMap alongside the bool/int/float/tojson
// filters.
type API struct {
	Vars    *model.Variables
	Context model.FlowContext
}

// FuncMap returns the text/template function map backing a.
func (a *API) FuncMap() template.FuncMap {
	return template.FuncMap{
		"bool":       toBool,
		"int":        toInt,
		"float":      toFloat,
		"tojson":     toJSON,
		"dt":         a.dt,
		"look":       a.look,
		"sqltuple":   sqltuple,
		"setvariable": a.setvariable,
		"error":      templateError,
		"peek":       peek,
	}
}

// dt coerces value into a time.Time and formats it with layout, a Go
// reference-time layout string. Accepts RFC3339 strings, unix seconds, or
// an existing time.Time.
func (a *API) dt(value any, layout string) (string, error) {
	t, err := coerceTime(value)
	if err != nil {
		return "", err
	}
	return t.Format(layout), nil
}

func coerceTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, nil
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(n, 0).UTC(), nil
		}
		return time.Time{}, fmt.Errorf("ankaflow: dt() cannot parse %q as a time", v)
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case float64:
		return time.Unix(int64(v), 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("ankaflow: dt() cannot coerce %T", value)
	}
}

// look resolves name against the Variables scope first, falling back to the
// FlowContext, and finally to def if neither holds it.
func (a *API) look(name string, def any) any {
	if a.Vars != nil {
		if v, ok := a.Vars.Get(name); ok {
			return v
		}
	}
	if v, ok := a.Context.Get(name); ok {
		return v
	}
	return def
}

// setvariable is the side-effecting template call that stores value into
// the shared Variables scope and prints nothing.
func (a *API) setvariable(name string, value any) (string, error) {
	if a.Vars == nil {
		return "", fmt.Errorf("ankaflow: setvariable() called outside a variable scope")
	}
	a.Vars.Set(name, value)
	return "", nil
}

// templateError aborts template execution with a user-generated error,
// matching the spec's "error(...) helper terminates the stage" behavior:
// text/template stops rendering as soon as a called function returns a
// non-nil error.
func templateError(msg string) (string, error) {
	return "", fmt.Errorf("ankaflow: %s", msg)
}

// peek returns value unless it is nil or an empty string, in which case it
// returns def.
func peek(value, def any) any {
	if value == nil {
		return def
	}
	if s, ok := value.(string); ok && s == "" {
		return def
	}
	return value
}

// sqltuple renders a slice as a SQL tuple literal, quoting strings and
// leaving numeric/bool values bare.
func sqltuple(values []any) (string, error) {
	parts := make([]string, len(values))
	for i, v := range values {
		switch t := v.(type) {
		case string:
			parts[i] = "'" + strings.ReplaceAll(t, "'", "''") + "'"
		case nil:
			parts[i] = "NULL"
		default:
			parts[i] = fmt.Sprintf("%v", t)
		}
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	case int, int64, float64:
		return fmt.Sprintf("%v", v) != "0", nil
	default:
		return false, fmt.Errorf("ankaflow: cannot coerce %T to bool", value)
	}
}

func toInt(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	default:
		return 0, fmt.Errorf("ankaflow: cannot coerce %T to int", value)
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("ankaflow: cannot coerce %T to float", value)
	}
}

func toJSON(value any) (string, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("ankaflow: tojson() encoding %T: %w", value, err)
	}
	return string(b), nil
}

package sqlrt

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// init registers the "sqlite3_ankaflow" driver with the Fn.* macro namespace
// bound to every new connection, per §4.C and §6. RegisterFunc must run at
// connect time (go-sqlite3's API ties custom functions to a *SQLiteConn), so
// the macro library lives here rather than on the already-open *sql.DB.
func init() {
	sql.Register("sqlite3_ankaflow", &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for name, fn := range macroFuncs {
				if err := conn.RegisterFunc(name, fn, true); err != nil {
					return fmt.Errorf("ankaflow: registering macro %s: %w", name, err)
				}
			}
			return nil
		},
	})
}

// installMacros is a no-op: registration itself happens in the ConnectHook
// above, once per physical connection. It runs no probe query and always
// returns nil.
func (a *Adapter) installMacros(ctx context.Context) error {
	return nil
}

// macroFuncs is the Fn.* namespace of §4.C: calendar generation, arithmetic
// and boolean coercions, robust datetime parsing, ISO-week/year/day
// helpers, a 4-4-5 fiscal bucketer, and regex/comparator/range validators.
var macroFuncs = map[string]any{
	"fn_dt":            fnDt,
	"fn_iso_year":      fnIsoYear,
	"fn_iso_week":      fnIsoWeek,
	"fn_iso_weekday":   fnIsoWeekday,
	"fn_fiscal_period": fnFiscalPeriod,
	"fn_to_bool":       fnToBool,
	"fn_to_int":        fnToInt,
	"fn_to_float":      fnToFloat,
	"fn_match":         fnMatch,
	"fn_between":       fnBetween,
	"fn_cmp":           fnCmp,
}

// fnDt robustly parses value as a timestamp: numeric seconds, milliseconds
// or nanoseconds since epoch, ISO-8601 with or without a timezone suffix, an
// explicit layout, or failing all of those, a fall-back epoch of zero.
func fnDt(value any, layout string) string {
	t, ok := parseFlexibleTime(value, layout)
	if !ok {
		t = time.Unix(0, 0).UTC()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseFlexibleTime(value any, layout string) (time.Time, bool) {
	switch v := value.(type) {
	case int64:
		return epochFromMagnitude(v), true
	case float64:
		return epochFromMagnitude(int64(v)), true
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochFromMagnitude(n), true
		}
		if layout != "" {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
		stripped := isoTZSuffix.ReplaceAllString(s, "")
		if t, err := time.Parse("2006-01-02T15:04:05", stripped); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", stripped); err == nil {
			return t, true
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

var isoTZSuffix = regexp.MustCompile(`(Z|[+-]\d{2}:?\d{2})$`)

// epochFromMagnitude infers the unit of a numeric epoch value from its
// magnitude: seconds (<1e12), milliseconds (<1e15), else nanoseconds.
func epochFromMagnitude(n int64) time.Time {
	abs := n
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < 1e12:
		return time.Unix(n, 0).UTC()
	case abs < 1e15:
		return time.UnixMilli(n).UTC()
	default:
		return time.Unix(0, n).UTC()
	}
}

func fnIsoYear(value any) int {
	t, _ := parseFlexibleTime(value, "")
	y, _ := t.ISOWeek()
	return y
}

func fnIsoWeek(value any) int {
	t, _ := parseFlexibleTime(value, "")
	_, w := t.ISOWeek()
	return w
}

func fnIsoWeekday(value any) int {
	t, _ := parseFlexibleTime(value, "")
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// fnFiscalPeriod buckets a date into a retail "4-4-5" fiscal period within
// its fiscal year: weeks 1-4 -> period 1, 5-8 -> period 2, 9-13 -> period 3,
// repeating across four 13-week quarters.
func fnFiscalPeriod(value any) int {
	t, _ := parseFlexibleTime(value, "")
	_, week := t.ISOWeek()
	week = ((week - 1) % 52) + 1
	quarterWeek := ((week - 1) % 13) + 1
	quarter := (week - 1) / 13
	switch {
	case quarterWeek <= 4:
		return quarter*3 + 1
	case quarterWeek <= 8:
		return quarter*3 + 2
	default:
		return quarter*3 + 3
	}
}

func fnToBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	default:
		return false
	}
}

func fnToInt(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	default:
		return 0
	}
}

func fnToFloat(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f
	default:
		return 0
	}
}

// fnMatch is the regex validation macro: returns value on pass, errors on
// fail (surfaced to the caller as a SQLite runtime error, matching the
// source's "typed error on fail" contract).
func fnMatch(value, pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("ankaflow: fn_match: invalid pattern %q: %w", pattern, err)
	}
	if !re.MatchString(value) {
		return "", fmt.Errorf("ankaflow: fn_match: %q does not match %q", value, pattern)
	}
	return value, nil
}

// fnBetween is the range validation macro.
func fnBetween(value, lo, hi float64) (float64, error) {
	if value < lo || value > hi {
		return 0, fmt.Errorf("ankaflow: fn_between: %v not in [%v, %v]", value, lo, hi)
	}
	return value, nil
}

// fnCmp is the comparator validation macro: op is one of "eq","ne","lt",
// "le","gt","ge".
func fnCmp(value float64, op string, against float64) (float64, error) {
	var ok bool
	switch op {
	case "eq":
		ok = value == against
	case "ne":
		ok = value != against
	case "lt":
		ok = value < against
	case "le":
		ok = value <= against
	case "gt":
		ok = value > against
	case "ge":
		ok = value >= against
	default:
		return 0, fmt.Errorf("ankaflow: fn_cmp: unknown operator %q", op)
	}
	if !ok {
		return 0, fmt.Errorf("ankaflow: fn_cmp: %v %s %v failed", value, op, against)
	}
	return value, nil
}

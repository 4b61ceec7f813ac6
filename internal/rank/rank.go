// Package rank implements the §4.D versioned-read transformer: rewriting a
// base SELECT so that only the highest-versioned row per key survives.
package rank

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	ctePattern       = regexp.MustCompile(`(?i)\bwith\s+\w+\s+as\s*\(`)
	groupByPattern   = regexp.MustCompile(`(?i)\bgroup\s+by\b`)
	aggregatePattern = regexp.MustCompile(`(?i)\b(avg|sum|count|min|max)\s*\(`)
)

// Rewrite rewrites baseQuery to read from selectable (a fully-qualified
// name or inline table function) and, when version and keys are both
// given, computes a __rank__ column via ROW_NUMBER() OVER (PARTITION BY
// keys ORDER BY version DESC), wrapped in a subquery named "ranked". It
// returns the rewritten SQL and the filter predicate the caller must apply
// after its own WHERE keyword ("__rank__ = 1" when ranking applies, ""
// otherwise).
//
// When version is empty or keys is empty, ranking is skipped entirely and
// Rewrite just substitutes selectable into the base query.
func Rewrite(baseQuery, selectable, version string, keys []string) (sql string, where string, err error) {
	substituted, err := substituteSelectable(baseQuery, selectable)
	if err != nil {
		return "", "", err
	}

	if version == "" || len(keys) == 0 {
		return substituted, "", nil
	}

	if err := guard(substituted); err != nil {
		return "", "", err
	}

	ranked := fmt.Sprintf(
		`SELECT *, ROW_NUMBER() OVER (PARTITION BY %s ORDER BY %s DESC) AS __rank__ FROM (%s) AS versioned`,
		strings.Join(keys, ", "), version, substituted,
	)
	wrapped := fmt.Sprintf(`SELECT * FROM (%s) AS ranked`, ranked)
	return wrapped, "__rank__ = 1", nil
}

// guard rejects base queries the rewrite would silently miscompute over: a
// CTE or GROUP BY changes row identity in ways PARTITION BY can't see
// through, and a pre-existing aggregate combined with ranking produces a
// rank over already-collapsed rows.
func guard(query string) error {
	if ctePattern.MatchString(query) {
		return fmt.Errorf("ankaflow: versioned read cannot rank a query containing a CTE")
	}
	if groupByPattern.MatchString(query) {
		return fmt.Errorf("ankaflow: versioned read cannot rank a query containing GROUP BY")
	}
	if aggregatePattern.MatchString(query) {
		return fmt.Errorf("ankaflow: versioned read cannot rank a query containing an aggregate function")
	}
	return nil
}

// fromPattern finds the literal placeholder token "__SELECTABLE__",
// wherever it appears in the query, so the caller's selectable can be
// substituted in place. Connectors write the placeholder into the base
// query they hand to Rewrite.
var fromPattern = regexp.MustCompile(`(?i)__SELECTABLE__`)

func substituteSelectable(query, selectable string) (string, error) {
	if !fromPattern.MatchString(query) {
		return "", fmt.Errorf("ankaflow: query does not reference the __SELECTABLE__ placeholder")
	}
	return fromPattern.ReplaceAllLiteralString(query, selectable), nil
}

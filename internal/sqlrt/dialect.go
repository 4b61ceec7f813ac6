package sqlrt

import (
	"fmt"
	"regexp"
	"strings"
)

// The connector layer (internal/connector/*) composes its local-materialization
// DDL in the table-function-and-cast dialect the original source's embedded
// engine understood: CREATE OR REPLACE TABLE/VIEW, a FROM-first
// "AS FROM <source>" shorthand, and "::TYPE" casts. The engine actually
// registered here is plain SQLite, which has none of those. translateDDL is
// a narrow, regex-based compatibility shim over the handful of shapes the
// connector layer emits - not a general dialect translator - so that callers
// can keep writing DDL in the familiar shape without every connector file
// hand-rolling SQLite's CREATE-IF-NOT-EXISTS/DROP-then-CREATE idiom.
var (
	createOrReplacePattern = regexp.MustCompile(`(?is)^\s*CREATE OR REPLACE (TABLE|VIEW)\s+("(?:[^"]|"")+"|\S+)\s+AS\s+(.*)$`)
	asFromPattern          = regexp.MustCompile(`(?i)\bAS\s+FROM\b`)
	castPattern            = regexp.MustCompile(`(\w+\([^()]*\)|[A-Za-z_][A-Za-z0-9_.]*)::([A-Za-z][A-Za-z0-9_]*)`)
)

// castAliases maps the source's scalar-type cast targets onto the nearest
// SQLite storage class; SQLite's type affinity makes most of these a no-op
// at the value level, but CAST still needs a name it recognizes.
var castAliases = map[string]string{
	"ubigint":  "INTEGER",
	"bigint":   "INTEGER",
	"hugeint":  "INTEGER",
	"int":      "INTEGER",
	"integer":  "INTEGER",
	"smallint": "INTEGER",
	"double":   "REAL",
	"float":    "REAL",
	"varchar":  "TEXT",
	"text":     "TEXT",
	"string":   "TEXT",
	"boolean":  "INTEGER",
	"bool":     "INTEGER",
}

// translateStatements rewrites one incoming statement into one or more
// SQLite-valid statements to execute in order; the result of the final one
// is what a caller expecting rows should read.
func translateStatements(sql string) []string {
	s := translateCasts(sql)

	if m := createOrReplacePattern.FindStringSubmatch(s); m != nil {
		kind, name, rest := strings.ToUpper(m[1]), m[2], asFromPattern.ReplaceAllString(m[3], "AS SELECT * FROM")
		return []string{
			fmt.Sprintf("DROP %s IF EXISTS %s", kind, name),
			fmt.Sprintf("CREATE %s %s AS %s", kind, name, rest),
		}
	}
	return []string{asFromPattern.ReplaceAllString(s, "AS SELECT * FROM")}
}

func translateCasts(sql string) string {
	return castPattern.ReplaceAllStringFunc(sql, func(match string) string {
		sub := castPattern.FindStringSubmatch(match)
		expr, typ := sub[1], strings.ToLower(sub[2])
		target, ok := castAliases[typ]
		if !ok {
			target = strings.ToUpper(typ)
		}
		return fmt.Sprintf("CAST(%s AS %s)", expr, target)
	})
}

package path

import (
	"fmt"
	"regexp"
)

// rawSQLFuncPattern matches the inline table functions the rewriter
// supports, capturing the function name, the quote character, and the
// quoted literal argument. Everything else in the call -- further kwargs,
// closing parens, trailing semicolons -- is left untouched by construction,
// since only the matched span is replaced.
var rawSQLFuncPattern = regexp.MustCompile(`(delta_scan|read_parquet)\(\s*(['"])([^'"]*)['"]`)

// RewriteRawSQL scans sql for delta_scan(...)/read_parquet(...) calls whose
// argument is a quoted literal, and substitutes the long (resolved) locator
// for any argument that matches shortLocator exactly. Absolute arguments
// (already a remote or local path) are left unchanged. An argument that is
// neither absolute nor equal to shortLocator is an error, per §8.2.
func RewriteRawSQL(sql, shortLocator, longLocator string) (string, error) {
	var rewriteErr error
	out := rawSQLFuncPattern.ReplaceAllStringFunc(sql, func(match string) string {
		if rewriteErr != nil {
			return match
		}
		sub := rawSQLFuncPattern.FindStringSubmatch(match)
		fn, quote, arg := sub[1], sub[2], sub[3]

		if IsAbsoluteRemote(arg) || (len(arg) > 0 && arg[0] == '/') {
			return match
		}
		if arg != shortLocator {
			rewriteErr = fmt.Errorf(
				"ankaflow: %s(...) argument %q does not match connection locator %q", fn, arg, shortLocator)
			return match
		}
		return fmt.Sprintf("%s(%c%s%c", fn, quote[0], longLocator, quote[0])
	})
	if rewriteErr != nil {
		return "", rewriteErr
	}
	return out, nil
}

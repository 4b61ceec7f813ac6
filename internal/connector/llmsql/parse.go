package llmsql

import (
	"fmt"
	"regexp"
	"strings"
)

var fencedSQLPattern = regexp.MustCompile("(?s)```(?:sql)?\\s*(.+?)\\s*```")

// sqlStarters are the statement keywords §4.K treats as the start of the
// SQL payload when it is embedded in prose rather than fenced or bare.
var sqlStarters = []string{"SELECT", "WITH"}

// extractSQL pulls a single SQL statement out of an LLM response in one of
// three shapes: the response is already bare SQL, the SQL is fenced in a
// ```sql code block, or the SQL begins partway through a prose explanation.
func extractSQL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("ankaflow: llm returned an empty response")
	}

	if m := fencedSQLPattern.FindStringSubmatch(trimmed); m != nil {
		return finalize(m[1])
	}

	upper := strings.ToUpper(trimmed)
	for _, starter := range sqlStarters {
		if strings.HasPrefix(upper, starter) {
			return finalize(trimmed)
		}
	}

	for _, starter := range sqlStarters {
		if idx := strings.Index(upper, starter); idx >= 0 {
			return finalize(trimmed[idx:])
		}
	}

	return "", fmt.Errorf("ankaflow: could not locate a SQL statement in the llm response")
}

func finalize(sql string) (string, error) {
	cleaned := strings.TrimSpace(sql)
	cleaned = strings.TrimSuffix(cleaned, ";")
	if cleaned == "" {
		return "", fmt.Errorf("ankaflow: extracted sql is empty")
	}
	return cleaned, nil
}

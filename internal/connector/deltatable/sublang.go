package deltatable

import (
	"fmt"
	"strconv"
	"strings"
)

type subLangOp string

const (
	opDrop     subLangOp = "drop"
	opTruncate subLangOp = "truncate"
	opOptimize subLangOp = "optimize"
)

type subLangCommand struct {
	op       subLangOp
	compact  bool
	vacuum   bool
	cleanup  bool
	dryRun   bool
	ageHours int
}

// parseSubLanguage parses the constrained DDL the table-format connector's
// SQL() accepts: DROP DELTATABLE, TRUNCATE DELTATABLE, and
// OPTIMIZE DELTATABLE [COMPACT] [VACUUM] [AGE=<n>[d|h]] [DRY_RUN] [CLEANUP].
func parseSubLanguage(statement string) (subLangCommand, error) {
	tokens := strings.Fields(strings.ToUpper(strings.TrimSpace(statement)))
	if len(tokens) < 2 || tokens[1] != "DELTATABLE" {
		return subLangCommand{}, fmt.Errorf("ankaflow: invalid command %q", statement)
	}

	switch tokens[0] {
	case "DROP":
		if len(tokens) != 2 {
			return subLangCommand{}, fmt.Errorf("ankaflow: invalid command %q", statement)
		}
		return subLangCommand{op: opDrop}, nil
	case "TRUNCATE":
		if len(tokens) != 2 {
			return subLangCommand{}, fmt.Errorf("ankaflow: invalid command %q", statement)
		}
		return subLangCommand{op: opTruncate}, nil
	case "OPTIMIZE":
		return parseOptimize(tokens[2:])
	default:
		return subLangCommand{}, fmt.Errorf("ankaflow: invalid command %q", statement)
	}
}

func parseOptimize(flags []string) (subLangCommand, error) {
	cmd := subLangCommand{op: opOptimize, ageHours: 7 * 24}
	for _, f := range flags {
		switch {
		case f == "COMPACT":
			cmd.compact = true
		case f == "VACUUM":
			cmd.vacuum = true
		case f == "DRY_RUN":
			cmd.dryRun = true
		case f == "CLEANUP":
			cmd.cleanup = true
		case strings.HasPrefix(f, "AGE="):
			hours, err := parseAge(strings.TrimPrefix(f, "AGE="))
			if err != nil {
				return subLangCommand{}, err
			}
			cmd.ageHours = hours
		default:
			return subLangCommand{}, fmt.Errorf("ankaflow: invalid command flag %q", f)
		}
	}
	if cmd.cleanup && !cmd.compact && !cmd.vacuum {
		return cmd, nil
	}
	if !cmd.compact && !cmd.vacuum {
		cmd.compact, cmd.vacuum = true, true
	}
	maxHours := 365 * 24
	if cmd.ageHours < 0 || cmd.ageHours > maxHours {
		return subLangCommand{}, fmt.Errorf("ankaflow: AGE must be between 0 and 365 days")
	}
	return cmd, nil
}

// parseAge parses a "<n>d" or "<n>h" age suffix into hours.
func parseAge(raw string) (int, error) {
	if raw == "" {
		return 0, fmt.Errorf("ankaflow: AGE requires a value")
	}
	unit := raw[len(raw)-1]
	numeric := raw
	multiplier := 1
	switch unit {
	case 'D', 'd':
		numeric = raw[:len(raw)-1]
		multiplier = 24
	case 'H', 'h':
		numeric = raw[:len(raw)-1]
		multiplier = 1
	}
	n, err := strconv.Atoi(numeric)
	if err != nil {
		return 0, fmt.Errorf("ankaflow: invalid AGE value %q", raw)
	}
	return n * multiplier, nil
}

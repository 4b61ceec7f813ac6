// Package deltatable implements the §4.G table-format connector: an open
// columnar table over object storage with transactional append/overwrite,
// the sink strategy matrix, optimize/vacuum, and a constrained SQL
// sub-language, backed by rivian/delta-go.
package deltatable

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ankaflow/ankaflow/internal/connector"
	"github.com/ankaflow/ankaflow/internal/model"
)

func init() {
	connector.Register(model.ConnDeltatable, newConnector)
}

// missingTableMarkers are provider-specific error substrings that indicate
// the underlying table does not exist yet, per §4.G.
var missingTableMarkers = []string{
	"missingversionerror",
	"invalidtablelocation",
	"no such table",
	"table not found",
}

type deltaConnector struct {
	connector.Base
	store *store
}

func newConnector(d connector.Deps) (connector.Connector, error) {
	s, err := newStore(d.Conn)
	if err != nil {
		return nil, err
	}
	return &deltaConnector{Base: connector.NewBase(d), store: s}, nil
}

func (c *deltaConnector) Tap(ctx context.Context, query string, limit int) error {
	locator, err := c.ResolveLocator(c.Conn.Locator, nil, false)
	if err != nil {
		return err
	}
	selectable := fmt.Sprintf("delta_scan('%s')", locator)

	selectList := "*"
	if strings.TrimSpace(query) != "" {
		selectList = query
	}
	base := fmt.Sprintf("SELECT %s FROM __SELECTABLE__", selectList)
	ranked, where, err := c.Rank(base, selectable)
	if err != nil {
		return err
	}
	if where != "" {
		ranked = fmt.Sprintf("SELECT * FROM (%s) __ranked__ WHERE %s", ranked, where)
	}
	if limit > 0 {
		ranked = fmt.Sprintf("SELECT * FROM (%s) __limited__ LIMIT %d", ranked, limit)
	}

	_, err = c.Adapter.Exec(ctx, fmt.Sprintf(`CREATE TABLE %q AS %s`, c.Stage, ranked))
	if err != nil {
		if isMissingTable(err) {
			return fmt.Errorf("ankaflow: tap source missing for stage %q: %w", c.Stage, err)
		}
		return err
	}
	return nil
}

func isMissingTable(err error) bool {
	lowered := strings.ToLower(err.Error())
	for _, marker := range missingTableMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// Sink implements the §4.G strategy matrix: declared fields x row count
// selects between SKIP, CREATE (empty declared schema) and WRITE
// (create-if-needed then append/overwrite per data_mode).
func (c *deltaConnector) Sink(ctx context.Context, fromName string) error {
	rel, err := c.Adapter.SQL(ctx, fmt.Sprintf(`SELECT COUNT(*)::UBIGINT AS n FROM %q`, fromName))
	if err != nil {
		return err
	}
	row, _ := rel.FetchOne()
	rowCount := asInt64(row["n"])
	hasFields := len(c.Conn.Fields) > 0

	switch {
	case !hasFields && rowCount == 0:
		return nil // SKIP
	case hasFields && rowCount == 0:
		return c.store.createEmpty(ctx, c.Conn.Fields)
	default:
		df, err := c.Adapter.SQL(ctx, fmt.Sprintf(`SELECT * FROM %q`, fromName))
		if err != nil {
			return err
		}
		return c.store.write(ctx, df, c.Conn.DataMode, c.Conn.SchemaMode, c.Conn.Partition)
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// SQL implements the table-format sub-language: DROP DELTATABLE, TRUNCATE
// DELTATABLE, and OPTIMIZE DELTATABLE [COMPACT] [VACUUM] [AGE=<n>[d|h]]
// [DRY_RUN] [CLEANUP].
func (c *deltaConnector) SQL(ctx context.Context, statement string) error {
	cmd, err := parseSubLanguage(statement)
	if err != nil {
		return err
	}
	// Run off the scheduler's cooperative task so compaction/vacuum I/O
	// does not starve other stages sharing the runtime (§5).
	done := make(chan error, 1)
	go func() { done <- c.runCommand(ctx, cmd) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *deltaConnector) runCommand(ctx context.Context, cmd subLangCommand) error {
	switch cmd.op {
	case opDrop:
		return c.store.drop(ctx)
	case opTruncate:
		return c.store.truncate(ctx)
	case opOptimize:
		return c.store.optimize(ctx, cmd.compact, cmd.vacuum, cmd.cleanup, cmd.ageHours, cmd.dryRun)
	default:
		return fmt.Errorf("ankaflow: invalid command %q", cmd.op)
	}
}

func (c *deltaConnector) ShowSchema(ctx context.Context) (model.Columns, error) {
	cols, err := c.ProbeSchema(ctx)
	if err == nil {
		return cols, nil
	}
	return c.store.describe(ctx)
}

// Optimize validates and bounds a connection-level optimize directive
// ("optimize"|"vacuum"|"all"|<int days>) per §4.G, returning whether to
// compact, whether to vacuum, and the vacuum retention.
func Optimize(directive string) (compact, vacuum bool, retention time.Duration, err error) {
	switch strings.ToLower(strings.TrimSpace(directive)) {
	case "optimize":
		return true, false, 0, nil
	case "vacuum":
		return false, true, 7 * 24 * time.Hour, nil
	case "all", "":
		return true, true, 7 * 24 * time.Hour, nil
	}
	days, convErr := parseIntDays(directive)
	if convErr != nil {
		return false, false, 0, fmt.Errorf("ankaflow: invalid optimize directive %q", directive)
	}
	if days < 0 {
		return false, false, 0, fmt.Errorf("ankaflow: optimize retention %d days must not be negative", days)
	}
	if days > 365 {
		return false, false, 0, fmt.Errorf("ankaflow: optimize retention %d days exceeds the 365 day bound", days)
	}
	return true, true, time.Duration(days) * 24 * time.Hour, nil
}

func parseIntDays(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &n)
	return n, err
}

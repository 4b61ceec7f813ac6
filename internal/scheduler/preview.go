package scheduler

import (
	"context"
	"fmt"
	"math"

	"github.com/ankaflow/ankaflow/internal/model"
)

// preview implements §4.L's show semantics: 0/nil disables, integer n>1
// samples n rows, fractional 0<f<1 samples round(f*100)% of the table, and
// -1 or "all" selects the entire table. The embedded SQL runtime (SQLite)
// has no native SAMPLE clause, so samples are taken with ORDER BY RANDOM()
// LIMIT n, or LIMIT <row estimate> for a percentage sample.
func (s *Scheduler) preview(ctx context.Context, stage *model.Stage) error {
	if stage.Show == nil {
		return nil
	}
	query, skip, err := previewQuery(stage.Name, stage.Show)
	if err != nil {
		return err
	}
	if skip {
		return nil
	}
	rel, err := s.Adapter.SQL(ctx, query)
	if err != nil {
		return err
	}
	s.Logger.WithField("stage", stage.Name).Infof("ankaflow: preview (%d rows): %v", len(rel.Rows), rel.FetchAll())
	return nil
}

func previewQuery(name string, show any) (query string, skip bool, err error) {
	switch v := show.(type) {
	case string:
		if v == "all" {
			return fmt.Sprintf(`SELECT * FROM %q`, name), false, nil
		}
		return "", false, fmt.Errorf("ankaflow: invalid show value %q", v)
	case bool:
		if !v {
			return "", true, nil
		}
		return fmt.Sprintf(`SELECT * FROM %q`, name), false, nil
	case int, int64:
		n := asInt64(v)
		switch {
		case n == 0:
			return "", true, nil
		case n == -1:
			return fmt.Sprintf(`SELECT * FROM %q`, name), false, nil
		case n > 1:
			return fmt.Sprintf(`SELECT * FROM %q ORDER BY RANDOM() LIMIT %d`, name, n), false, nil
		default:
			return "", false, fmt.Errorf("ankaflow: invalid show value %d", n)
		}
	case float64:
		switch {
		case v == -1:
			return fmt.Sprintf(`SELECT * FROM %q`, name), false, nil
		case v == 0:
			return "", true, nil
		case v > 0 && v < 1:
			pct := int(math.Round(v * 100))
			return fmt.Sprintf(
				`SELECT * FROM %q ORDER BY RANDOM() LIMIT (SELECT CAST(ROUND(COUNT(*) * %d / 100.0) AS INT) FROM %q)`,
				name, pct, name,
			), false, nil
		case v > 1:
			return fmt.Sprintf(`SELECT * FROM %q ORDER BY RANDOM() LIMIT %d`, name, int64(v)), false, nil
		default:
			return "", false, fmt.Errorf("ankaflow: invalid show value %v", v)
		}
	default:
		return "", false, fmt.Errorf("ankaflow: invalid show value %v (%T)", show, show)
	}
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}

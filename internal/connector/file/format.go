// Package file implements the §4.F file and object-store connectors:
// explicit-format (parquet/json/csv), the polymorphic local "file" reader,
// and the "variable" connector that round-trips through Variables.
package file

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ankaflow/ankaflow/internal/connector"
	"github.com/ankaflow/ankaflow/internal/model"
	"github.com/ankaflow/ankaflow/internal/ops"
	"github.com/ankaflow/ankaflow/internal/path"
)

func init() {
	connector.Register(model.ConnParquet, newFormatConnector("parquet"))
	connector.Register(model.ConnJSON, newFormatConnector("json"))
	connector.Register(model.ConnCSV, newFormatConnector("csv"))
}

// formatConnector backs the explicit-format connections: Parquet, JSON and
// CSV all share the same tap/sink/schema shape, differing only in which
// adapter ingestion call reads the format and which ops format writes it.
type formatConnector struct {
	connector.Base
	format string
}

func newFormatConnector(format string) connector.Factory {
	return func(d connector.Deps) (connector.Connector, error) {
		return &formatConnector{Base: connector.NewBase(d), format: format}, nil
	}
}

func (c *formatConnector) Tap(ctx context.Context, query string, limit int) error {
	locator, err := c.ResolveLocator(c.Conn.Locator, nil, false)
	if err != nil {
		return err
	}

	if c.Conn.RawDispatch {
		rewritten, err := c.RewriteRawSQL(query, locator)
		if err != nil {
			return err
		}
		_, err = c.Adapter.Exec(ctx, fmt.Sprintf(`CREATE TABLE %q AS %s`, c.Stage, rewritten))
		return err
	}

	data, err := fetchObject(ctx, c.Adapter, locator)
	if err != nil {
		return err
	}
	raw := c.Stage + "__raw"
	switch c.format {
	case "parquet":
		err = c.Adapter.ReadParquet(ctx, data, raw, ingestCreateOpts)
	case "csv":
		err = c.Adapter.ReadCSV(ctx, data, raw, 0, ingestCreateOpts)
	case "json":
		err = c.Adapter.ReadJSON(ctx, data, raw, ingestCreateOpts)
	default:
		return fmt.Errorf("ankaflow: file format %q is not implemented", c.format)
	}
	if err != nil {
		return err
	}
	defer c.Adapter.Unregister(ctx, raw)

	selectList := "*"
	if strings.TrimSpace(query) != "" {
		selectList = query
	}
	selectSQL := fmt.Sprintf("SELECT %s FROM %q", selectList, raw)
	if limit > 0 {
		selectSQL = fmt.Sprintf("SELECT * FROM (%s) __limited__ LIMIT %d", selectSQL, limit)
	}
	_, err = c.Adapter.Exec(ctx, fmt.Sprintf(`CREATE OR REPLACE TABLE %q AS %s`, c.Stage, selectSQL))
	return err
}

// Sink renders fromName's rows in c.format and writes them to the resolved
// locator: directly for a local path, or through a local staging file
// uploaded via the provider SDK for s3:// and gs:// targets.
func (c *formatConnector) Sink(ctx context.Context, fromName string) error {
	locator, err := c.ResolveLocator(c.Conn.Locator, nil, false)
	if err != nil {
		return err
	}
	opsFormat, err := ops.ParseFormat(c.format)
	if err != nil {
		return fmt.Errorf("ankaflow: file format %q is not implemented", c.format)
	}
	rel, err := c.Adapter.SQL(ctx, fmt.Sprintf(`SELECT * FROM %q`, fromName))
	if err != nil {
		return err
	}

	p, err := path.Parse(locator)
	if err != nil {
		return err
	}
	if p.Scheme == path.SchemeLocal {
		return ops.WriteRelation(opsFormat, p.Key, rel)
	}

	tmp, err := os.CreateTemp("", "ankaflow-sink-*"+p.Suffix())
	if err != nil {
		return fmt.Errorf("ankaflow: creating sink staging file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := ops.WriteRelation(opsFormat, tmpPath, rel); err != nil {
		return err
	}
	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return fmt.Errorf("ankaflow: reading sink staging file: %w", err)
	}
	return putObject(ctx, c.Adapter, locator, data)
}

func (c *formatConnector) SQL(ctx context.Context, statement string) error {
	_, err := c.Adapter.Exec(ctx, statement)
	return err
}

func (c *formatConnector) ShowSchema(ctx context.Context) (model.Columns, error) {
	cols, err := c.ProbeSchema(ctx)
	if err == nil {
		return cols, nil
	}
	locator, resolveErr := c.ResolveLocator(c.Conn.Locator, nil, false)
	if resolveErr != nil {
		return nil, resolveErr
	}
	return connector.CachedProbe(c.format+":"+locator, func() (model.Columns, error) {
		data, fetchErr := fetchObject(ctx, c.Adapter, locator)
		if fetchErr != nil {
			return nil, fetchErr
		}
		probe := c.Stage + "__probe"
		var ingestErr error
		switch c.format {
		case "parquet":
			ingestErr = c.Adapter.ReadParquet(ctx, data, probe, ingestCreateOpts)
		case "csv":
			ingestErr = c.Adapter.ReadCSV(ctx, data, probe, 0, ingestCreateOpts)
		case "json":
			ingestErr = c.Adapter.ReadJSON(ctx, data, probe, ingestCreateOpts)
		default:
			return nil, fmt.Errorf("ankaflow: file format %q is not implemented", c.format)
		}
		if ingestErr != nil {
			return nil, ingestErr
		}
		defer c.Adapter.Unregister(ctx, probe)

		rel, probeErr := c.Adapter.SQL(ctx, fmt.Sprintf(`SELECT * FROM %q LIMIT 1`, probe))
		if probeErr != nil {
			return nil, probeErr
		}
		out := make(model.Columns, len(rel.Columns))
		for i, name := range rel.Columns {
			out[i] = model.Column{Name: name, Type: "unknown"}
		}
		return out, nil
	})
}

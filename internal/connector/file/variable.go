package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ankaflow/ankaflow/internal/connector"
	"github.com/ankaflow/ankaflow/internal/model"
	"github.com/ankaflow/ankaflow/internal/sqlrt"
)

// ingestCreateOpts is the ingestion option every file-backed connector uses:
// the stage table is always being created fresh by Tap.
var ingestCreateOpts = sqlrt.IngestOptions{CreateWhenNeeded: true}

func init() {
	connector.Register(model.ConnVariable, newVariableConnector)
}

// variableConnector round-trips the stage table through an in-memory
// Variables entry instead of external storage, per §4.F.
type variableConnector struct {
	connector.Base
	vars *model.Variables
}

func newVariableConnector(d connector.Deps) (connector.Connector, error) {
	return &variableConnector{Base: connector.NewBase(d), vars: d.Variables}, nil
}

func (c *variableConnector) Tap(ctx context.Context, query string, limit int) error {
	value, ok := c.vars.Get(c.Conn.Locator)
	if !ok {
		return fmt.Errorf("ankaflow: variable %q is not set", c.Conn.Locator)
	}
	records, err := toRecordSlice(value)
	if err != nil {
		return err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("ankaflow: encoding variable %q: %w", c.Conn.Locator, err)
		}
	}
	return c.Adapter.ReadJSON(ctx, buf.Bytes(), c.Stage, ingestCreateOpts)
}

func (c *variableConnector) Sink(ctx context.Context, fromName string) error {
	rel, err := c.Adapter.SQL(ctx, fmt.Sprintf(`SELECT * FROM %q`, fromName))
	if err != nil {
		return err
	}
	c.vars.Set(c.Conn.Locator, rel.FetchAll())
	return nil
}

func (c *variableConnector) SQL(ctx context.Context, statement string) error {
	return fmt.Errorf("ankaflow: the variable connector does not support sql()")
}

func (c *variableConnector) ShowSchema(ctx context.Context) (model.Columns, error) {
	return c.ProbeSchema(ctx)
}

// toRecordSlice normalizes a Variables value into a list-of-records shape,
// accepting either an existing []map[string]any or a single record.
func toRecordSlice(value any) ([]map[string]any, error) {
	switch v := value.(type) {
	case []map[string]any:
		return v, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, elem := range v {
			rec, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("ankaflow: variable element %T is not a record", elem)
			}
			out = append(out, rec)
		}
		return out, nil
	case map[string]any:
		return []map[string]any{v}, nil
	default:
		return nil, fmt.Errorf("ankaflow: variable value %T is not record-shaped", value)
	}
}

package file

import (
	"context"
	"fmt"
	"strings"

	"github.com/ankaflow/ankaflow/internal/connector"
	"github.com/ankaflow/ankaflow/internal/model"
	"github.com/ankaflow/ankaflow/internal/path"
)

func init() {
	connector.Register(model.ConnFile, newPolyFileConnector)
	connector.Register(model.ConnLocal, newPolyFileConnector)
	connector.Register(model.ConnS3, newPolyFileConnector)
	connector.Register(model.ConnGS, newPolyFileConnector)
}

// polyFileConnector is the polymorphic local/S3/GS reader of §4.F: format is
// resolved from context (FileName/FileType) or the locator's suffix, the
// object's bytes are fetched (fetch.go), and parsed via the adapter's
// Go-native read_<fmt> ingestion (sqlrt.Adapter.ReadCSV/ReadJSON/ReadParquet)
// into a raw staging table before the requested select-list/limit is
// materialized into the stage table.
type polyFileConnector struct {
	connector.Base
	fileName string
	fileType string
}

func newPolyFileConnector(d connector.Deps) (connector.Connector, error) {
	c := &polyFileConnector{Base: connector.NewBase(d)}
	if v, ok := d.Context["FileName"].(string); ok {
		c.fileName = v
	}
	if v, ok := d.Context["FileType"].(string); ok {
		c.fileType = v
	}
	return c, nil
}

func (c *polyFileConnector) resolveFormat() (string, error) {
	if c.fileType != "" {
		return strings.ToLower(c.fileType), nil
	}
	locator, err := c.ResolveLocator(c.Conn.Locator, nil, false)
	if err != nil {
		return "", err
	}
	p, err := path.Parse(locator)
	if err != nil {
		return "", err
	}
	suffix := strings.TrimPrefix(strings.ToLower(p.Suffix()), ".")
	if suffix == "" {
		return "", fmt.Errorf("ankaflow: cannot infer file format for %q", locator)
	}
	return suffix, nil
}

func (c *polyFileConnector) Tap(ctx context.Context, query string, limit int) error {
	format, err := c.resolveFormat()
	if err != nil {
		return err
	}
	locator, err := c.ResolveLocator(c.Conn.Locator, nil, false)
	if err != nil {
		return err
	}

	switch format {
	case "xlsx", "xls":
		return c.tapExcel(ctx, locator, limit)
	case "xml", "html":
		return fmt.Errorf("ankaflow: file format %q is not implemented", format)
	}

	data, err := fetchObject(ctx, c.Adapter, locator)
	if err != nil {
		return err
	}

	raw := c.Stage + "__raw"
	switch format {
	case "parquet":
		err = c.Adapter.ReadParquet(ctx, data, raw, ingestCreateOpts)
	case "csv":
		err = c.Adapter.ReadCSV(ctx, data, raw, 0, ingestCreateOpts)
	case "tsv":
		err = c.Adapter.ReadCSV(ctx, data, raw, '\t', ingestCreateOpts)
	case "json":
		err = c.Adapter.ReadJSON(ctx, data, raw, ingestCreateOpts)
	default:
		return fmt.Errorf("ankaflow: file format %q is not implemented", format)
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

// tapExcel reads an xlsx/xls workbook's first sheet via excelize and
// registers it as the stage table through the adapter's JSON ingestion
// path, since the embedded engine has no native spreadsheet reader.
func (c *polyFileConnector) tapExcel(ctx context.Context, locator string, limit int) error {
	data, err := fetchObject(ctx, c.Adapter, locator)
	if err != nil {
		return err
	}
	rows, err := decodeExcelRows(data, limit)
	if err != nil {
		return err
	}
	return c.Adapter.ReadJSON(ctx, rows, c.Stage, ingestCreateOpts)
}

func (c *polyFileConnector) Sink(ctx context.Context, fromName string) error {
	return fmt.Errorf("ankaflow: the file connector is tap-only")
}

func (c *polyFileConnector) SQL(ctx context.Context, statement string) error {
	_, err := c.Adapter.Exec(ctx, statement)
	return err
}

func (c *polyFileConnector) ShowSchema(ctx context.Context) (model.Columns, error) {
	return c.ProbeSchema(ctx)
}

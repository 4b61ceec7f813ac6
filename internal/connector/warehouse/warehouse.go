// Package warehouse implements the §4.H warehouse connector: a query-only
// source and batch-load sink over a cloud data warehouse, modeled on
// BigQuery via google.golang.org/api/bigquery/v2.
package warehouse

import (
	"context"
	"fmt"
	"strings"

	bigquery "google.golang.org/api/bigquery/v2"

	"github.com/ankaflow/ankaflow/internal/connector"
	"github.com/ankaflow/ankaflow/internal/model"
)

func init() {
	connector.Register(model.ConnWarehouse, newConnector)
}

type warehouseConnector struct {
	connector.Base
	svc     *bigquery.Service
	project string
	dataset string
	region  string
}

func newConnector(d connector.Deps) (connector.Connector, error) {
	if d.Config == nil || d.Config.Warehouse == nil {
		return nil, fmt.Errorf("ankaflow: warehouse connection requires warehouse configuration")
	}
	cfg := d.Config.Warehouse
	svc, err := bigquery.NewService(context.Background())
	if err != nil {
		return nil, fmt.Errorf("ankaflow: creating warehouse client: %w", err)
	}
	return &warehouseConnector{
		Base:    connector.NewBase(d),
		svc:     svc,
		project: cfg.Project,
		dataset: cfg.Dataset,
		region:  cfg.Region,
	}, nil
}

// qualify normalizes an identifier by stripping backticks/quotes and
// prepending the configured dataset when the identifier is unqualified.
func (c *warehouseConnector) qualify(identifier string) string {
	cleaned := strings.Trim(identifier, "`\"")
	if strings.Contains(cleaned, ".") || c.dataset == "" {
		return cleaned
	}
	return c.dataset + "." + cleaned
}

func (c *warehouseConnector) Tap(ctx context.Context, query string, limit int) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("ankaflow: warehouse tap requires an explicit query")
	}
	qualified := c.qualify(c.Conn.Locator)
	base := fmt.Sprintf("SELECT * FROM __SELECTABLE__ (%s)", query)
	ranked, where, err := c.Rank(base, qualified)
	if err != nil {
		return err
	}
	if where != "" {
		ranked = fmt.Sprintf("SELECT * FROM (%s) __ranked__ WHERE %s", ranked, where)
	}
	if limit > 0 {
		ranked = fmt.Sprintf("SELECT * FROM (%s) __limited__ LIMIT %d", ranked, limit)
	}

	rows, columns, err := c.runQuery(ctx, ranked)
	if err != nil {
		return err
	}
	temp := "bigdf"
	if err := c.Adapter.Register(ctx, temp, columns, rows); err != nil {
		return err
	}
	defer c.Adapter.Unregister(ctx, temp)

	_, execErr := c.Adapter.Exec(ctx, fmt.Sprintf(`CREATE TABLE %q AS SELECT * FROM %q`, c.Stage, temp))
	if execErr != nil {
		_, _ = c.Adapter.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q`, c.Stage))
		return execErr
	}
	return nil
}

func (c *warehouseConnector) runQuery(ctx context.Context, query string) ([][]any, []string, error) {
	job := &bigquery.QueryRequest{Query: query, UseLegacySql: new(bool)}
	resp, err := c.svc.Jobs.Query(c.project, job).Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("ankaflow: warehouse query failed: %w", err)
	}
	columns := make([]string, len(resp.Schema.Fields))
	for i, f := range resp.Schema.Fields {
		columns[i] = f.Name
	}
	rows := make([][]any, len(resp.Rows))
	for ri, row := range resp.Rows {
		values := make([]any, len(row.F))
		for ci, cell := range row.F {
			values[ci] = cell.V
		}
		rows[ri] = values
	}
	return rows, columns, nil
}

// dispositionFor maps (data_mode, schema_mode) onto BigQuery's
// WriteDisposition enum per §4.H.
func dispositionFor(dataMode model.DataMode, schemaMode model.SchemaMode) string {
	if schemaMode == model.SchemaModeMerge {
		return "ALLOW_FIELD_ADDITION"
	}
	switch dataMode {
	case model.DataModeOverwrite:
		return "WRITE_TRUNCATE"
	case model.DataModeError:
		return "WRITE_EMPTY"
	default:
		return "WRITE_APPEND"
	}
}

func (c *warehouseConnector) Sink(ctx context.Context, fromName string) error {
	rel, err := c.Adapter.SQL(ctx, fmt.Sprintf(`SELECT * FROM %q`, fromName))
	if err != nil {
		return err
	}
	if len(rel.Rows) == 0 {
		return nil
	}

	target := c.qualify(c.Conn.Locator)
	disposition := dispositionFor(c.Conn.DataMode, c.Conn.SchemaMode)

	err = c.loadJob(ctx, target, disposition, rel)
	if err == nil {
		return nil
	}
	if isDatasetNotFound(err) {
		if createErr := c.createDataset(ctx); createErr != nil {
			return fmt.Errorf("ankaflow: creating warehouse dataset %q: %w", c.dataset, createErr)
		}
		return c.loadJob(ctx, target, disposition, rel)
	}
	if isConflict(err) && c.Conn.DataMode == model.DataModeError {
		return fmt.Errorf("ankaflow: warehouse sink data-mode conflict on %q: %w", target, err)
	}
	if isSchemaMismatch(err) && c.Conn.SchemaMode != model.SchemaModeMerge {
		return fmt.Errorf("ankaflow: warehouse sink schema-mode conflict on %q: %w", target, err)
	}
	return err
}

func (c *warehouseConnector) loadJob(ctx context.Context, target, disposition string, rel interface{ DF() map[string][]any }) error {
	job := &bigquery.Job{
		Configuration: &bigquery.JobConfiguration{
			Load: &bigquery.JobConfigurationLoad{
				DestinationTable: parseTableRef(target, c.project),
				WriteDisposition: disposition,
				SourceFormat:     "NEWLINE_DELIMITED_JSON",
			},
		},
	}
	_, err := c.svc.Jobs.Insert(c.project, job).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("ankaflow: warehouse load job failed: %w", err)
	}
	return nil
}

func (c *warehouseConnector) createDataset(ctx context.Context) error {
	ds := &bigquery.Dataset{
		DatasetReference: &bigquery.DatasetReference{ProjectId: c.project, DatasetId: c.dataset},
		Location:         c.region,
	}
	_, err := c.svc.Datasets.Insert(c.project, ds).Context(ctx).Do()
	return err
}

func parseTableRef(qualified, project string) *bigquery.TableReference {
	parts := strings.SplitN(qualified, ".", 2)
	if len(parts) != 2 {
		return &bigquery.TableReference{ProjectId: project, TableId: qualified}
	}
	return &bigquery.TableReference{ProjectId: project, DatasetId: parts[0], TableId: parts[1]}
}

func isDatasetNotFound(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "not found") && strings.Contains(strings.ToLower(err.Error()), "dataset")
}

func isConflict(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already exists") || strings.Contains(strings.ToLower(err.Error()), "conflict")
}

func isSchemaMismatch(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "schema")
}

func (c *warehouseConnector) SQL(ctx context.Context, statement string) error {
	_, _, err := c.runQuery(ctx, statement)
	return err
}

func (c *warehouseConnector) ShowSchema(ctx context.Context) (model.Columns, error) {
	return c.ProbeSchema(ctx)
}

package deltatable

import (
	"context"
	"fmt"
	"time"

	"github.com/rivian/delta-go"
	"github.com/rivian/delta-go/storage"

	"github.com/ankaflow/ankaflow/internal/model"
	"github.com/ankaflow/ankaflow/internal/sqlrt"
)

// store wraps a single Delta Lake table location, backed by rivian/delta-go
// for transactional writes, schema evolution, and the optimize/vacuum
// retention operations of §4.G. Reads go through the embedded SQL engine's
// delta_scan(...) (deltatable.go); store only handles the write side and
// maintenance operations delta-go actually implements.
type store struct {
	locator string
	table   *delta.DeltaTable
}

func newStore(conn *model.Connection) (*store, error) {
	if conn == nil || conn.Locator == "" {
		return nil, fmt.Errorf("ankaflow: deltatable connection requires a locator")
	}
	objStore, err := storage.NewURIStore(conn.Locator)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: opening delta table store at %q: %w", conn.Locator, err)
	}
	table, err := delta.OpenTable(objStore)
	if err != nil {
		table = delta.NewTable(objStore)
	}
	return &store{locator: conn.Locator, table: table}, nil
}

// write appends or overwrites rel's rows, mapping data_mode/schema_mode onto
// delta-go's commit semantics. No dictionary-to-string cast is made here:
// the adapter's Relation shape is already column-oriented and untyped.
func (s *store) write(ctx context.Context, rel *sqlrt.Relation, dataMode model.DataMode, schemaMode model.SchemaMode, partitionBy []string) error {
	df := rel.DF()
	overwrite := dataMode == model.DataModeOverwrite
	allowAdd := schemaMode == model.SchemaModeMerge

	return s.table.Write(ctx, delta.WriteOptions{
		Overwrite:            overwrite,
		AllowSchemaAddition:  allowAdd,
		PartitionBy:          partitionBy,
	}, df)
}

// createEmpty materializes a one-row dummy table matching fields' declared
// schema, to force a schema commit when the stage produced zero rows.
func (s *store) createEmpty(ctx context.Context, fields model.Columns) error {
	dummy := make(map[string][]any, len(fields))
	for _, f := range fields {
		dummy[f.Name] = []any{defaultForType(f.Type)}
	}
	return s.table.Write(ctx, delta.WriteOptions{Overwrite: false}, dummy)
}

func defaultForType(sqlType string) any {
	switch sqlType {
	case "int", "bigint", "integer":
		return int64(0)
	case "float", "double":
		return float64(0)
	case "bool", "boolean":
		return false
	default:
		return ""
	}
}

func (s *store) drop(ctx context.Context) error {
	return s.table.Delete(ctx)
}

func (s *store) truncate(ctx context.Context) error {
	return s.table.Write(ctx, delta.WriteOptions{Overwrite: true}, map[string][]any{})
}

// optimize runs compaction and/or vacuum per the requested flags. cleanup
// removes only stale metadata log entries without touching data files.
func (s *store) optimize(ctx context.Context, compact, vacuum, cleanup bool, ageHours int, dryRun bool) error {
	if compact {
		if _, err := s.table.Compact(ctx, delta.CompactOptions{DryRun: dryRun}); err != nil {
			return fmt.Errorf("ankaflow: compacting delta table %q: %w", s.locator, err)
		}
	}
	if vacuum {
		retention := time.Duration(ageHours) * time.Hour
		if _, err := s.table.Vacuum(ctx, delta.VacuumOptions{Retention: retention, DryRun: dryRun}); err != nil {
			return fmt.Errorf("ankaflow: vacuuming delta table %q: %w", s.locator, err)
		}
	}
	if cleanup {
		return s.table.CleanupMetadata(ctx)
	}
	return nil
}

func (s *store) describe(ctx context.Context) (model.Columns, error) {
	schema, err := s.table.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: describing delta table %q: %w", s.locator, err)
	}
	cols := make(model.Columns, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		cols = append(cols, model.Column{Name: f.Name, Type: f.Type})
	}
	return cols, nil
}

package sqlrt

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/ankaflow/ankaflow/internal/errs"
	"github.com/parquet-go/parquet-go"
)

// IngestOptions controls read_json|read_parquet|read_csv (§4.C).
type IngestOptions struct {
	// CreateWhenNeeded creates the table on first call; when false and the
	// table is missing, ingestion fails with a "catalog" error class.
	CreateWhenNeeded bool
}

// ReadJSON ingests newline-delimited JSON objects into table, creating it on
// first call and appending thereafter.
func (a *Adapter) ReadJSON(ctx context.Context, data []byte, table string, opts IngestOptions) error {
	var records []map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var rec map[string]any
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("ankaflow: read_json(%q): %w", table, err)
		}
		records = append(records, rec)
	}
	cols := unionKeys(records)
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(cols))
		for ci, c := range cols {
			row[ci] = rec[c]
		}
		rows[i] = row
	}
	return a.ingest(ctx, table, cols, rows, opts)
}

// ReadCSV ingests CSV/TSV-shaped content, using the header row as columns.
func (a *Adapter) ReadCSV(ctx context.Context, data []byte, table string, delimiter rune, opts IngestOptions) error {
	r := csv.NewReader(bytes.NewReader(data))
	if delimiter != 0 {
		r.Comma = delimiter
	}
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("ankaflow: read_csv(%q): %w", table, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("ankaflow: read_csv(%q): empty input", table)
	}
	cols := records[0]
	rows := make([][]any, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make([]any, len(cols))
		for i := range cols {
			if i < len(rec) {
				row[i] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return a.ingest(ctx, table, cols, rows, opts)
}

// ReadParquet ingests a Parquet file's rows via parquet-go, flattening each
// row into the generic dataframe shape the adapter writes from.
func (a *Adapter) ReadParquet(ctx context.Context, data []byte, table string, opts IngestOptions) error {
	reader := parquet.NewReader(bytes.NewReader(data))
	defer reader.Close()

	var cols []string
	for _, f := range reader.Schema().Fields() {
		cols = append(cols, f.Name())
	}

	var rows [][]any
	for {
		rec := make(map[string]any, len(cols))
		if err := reader.Read(&rec); err == io.EOF {
			break
		} else if err != nil {
			return fmt.Errorf("ankaflow: read_parquet(%q): %w", table, err)
		}
		row := make([]any, len(cols))
		for ci, c := range cols {
			row[ci] = rec[c]
		}
		rows = append(rows, row)
	}
	return a.ingest(ctx, table, cols, rows, opts)
}

func unionKeys(records []map[string]any) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func (a *Adapter) ingest(ctx context.Context, table string, cols []string, rows [][]any, opts IngestOptions) error {
	exists, err := a.tableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		if !opts.CreateWhenNeeded {
			return errs.New(errs.Connection, "ankaflow: catalog error: table %q does not exist and create_when_needed is false", table)
		}
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = fmt.Sprintf("%q", c)
		}
		ddl := fmt.Sprintf(`CREATE TABLE %q (%s)`, table, joinCols(quoted))
		if _, err := a.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ankaflow: creating table %q: %w", table, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
		placeholders[i] = "?"
	}
	insertSQL := fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`, table, joinCols(quoted), joinCols(placeholders))
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ankaflow: ingesting into %q: %w", table, err)
	}
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, insertSQL, row...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("ankaflow: ingesting into %q: %w", table, err)
		}
	}
	return tx.Commit()
}

func (a *Adapter) tableExists(ctx context.Context, table string) (bool, error) {
	row := a.db.QueryRowContext(ctx, `SELECT 1 FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, table)
	var flag int
	switch err := row.Scan(&flag); err {
	case nil:
		return true, nil
	default:
		if err.Error() == "sql: no rows in result set" {
			return false, nil
		}
		return false, fmt.Errorf("ankaflow: checking table %q: %w", table, err)
	}
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

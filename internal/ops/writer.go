package ops

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"

	"github.com/ankaflow/ankaflow/internal/sqlrt"
)

// Format is an output sink format for the CLI's `-o FORMAT PATH` flag.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
	FormatJSON    Format = "json"
	FormatExcel   Format = "excel"
)

// ParseFormat validates a -o flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatParquet, FormatJSON, FormatExcel:
		return f, nil
	default:
		return "", fmt.Errorf("ankaflow: unknown output format %q (want csv|parquet|json|excel)", s)
	}
}

// WriteRelation renders the final stage's result relation to path in the
// requested format, matching §6's CLI output surface.
func WriteRelation(format Format, path string, rel *sqlrt.Relation) error {
	switch format {
	case FormatCSV:
		return writeCSV(path, rel)
	case FormatParquet:
		return writeParquet(path, rel)
	case FormatJSON:
		return writeJSON(path, rel)
	case FormatExcel:
		return writeExcel(path, rel)
	default:
		return fmt.Errorf("ankaflow: unknown output format %q", format)
	}
}

func writeCSV(path string, rel *sqlrt.Relation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ankaflow: creating %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(rel.Columns); err != nil {
		return fmt.Errorf("ankaflow: writing csv header to %q: %w", path, err)
	}
	for _, row := range rel.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = fmt.Sprint(v)
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("ankaflow: writing csv row to %q: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeJSON(path string, rel *sqlrt.Relation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ankaflow: creating %q: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(rel.FetchAll())
}

func writeExcel(path string, rel *sqlrt.Relation) error {
	xf := excelize.NewFile()
	defer xf.Close()
	const sheet = "Sheet1"

	for ci, col := range rel.Columns {
		cell, err := excelize.CoordinatesToCellName(ci+1, 1)
		if err != nil {
			return err
		}
		if err := xf.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	for ri, row := range rel.Rows {
		for ci, v := range row {
			cell, err := excelize.CoordinatesToCellName(ci+1, ri+2)
			if err != nil {
				return err
			}
			if err := xf.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	if err := xf.SaveAs(path); err != nil {
		return fmt.Errorf("ankaflow: writing excel to %q: %w", path, err)
	}
	return nil
}

func writeParquet(path string, rel *sqlrt.Relation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ankaflow: creating %q: %w", path, err)
	}
	defer f.Close()

	schema := parquetSchema(rel)
	w := parquet.NewWriter(f, schema)
	for _, row := range rel.FetchAll() {
		if _, err := w.Write(row); err != nil {
			_ = w.Close()
			return fmt.Errorf("ankaflow: writing parquet row to %q: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("ankaflow: finalizing parquet file %q: %w", path, err)
	}
	return nil
}

// parquetSchema infers a permissive optional-field schema from the first
// non-nil value observed per column, since the relation carries Go-typed
// driver values rather than a declared SQL schema.
func parquetSchema(rel *sqlrt.Relation) *parquet.Schema {
	group := make(parquet.Group, len(rel.Columns))
	for ci, col := range rel.Columns {
		group[col] = parquet.Optional(leafFor(rel, ci))
	}
	return parquet.NewSchema("row", group)
}

func leafFor(rel *sqlrt.Relation, col int) parquet.Node {
	for _, row := range rel.Rows {
		switch row[col].(type) {
		case int64, int, int32:
			return parquet.Int(64)
		case float64, float32:
			return parquet.Leaf(parquet.DoubleType)
		case bool:
			return parquet.Leaf(parquet.BooleanType)
		case nil:
			continue
		default:
			return parquet.String()
		}
	}
	return parquet.String()
}

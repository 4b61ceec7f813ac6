package sqlrt

import (
	"database/sql"
	"fmt"
)

// Relation is the result of an executed statement, exposing the fetch
// variants §4.C requires plus a raw escape hatch.
type Relation struct {
	Columns []string
	Rows    [][]any
}

func newRelation(rows *sql.Rows) (*Relation, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("ankaflow: reading result columns: %w", err)
	}
	rel := &Relation{Columns: cols}
	for rows.Next() {
		scanned := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range scanned {
			ptrs[i] = &scanned[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("ankaflow: scanning result row: %w", err)
		}
		rel.Rows = append(rel.Rows, scanned)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ankaflow: iterating result rows: %w", err)
	}
	return rel, nil
}

// FetchOne returns the first row as a column-name map, or ok=false if empty.
func (r *Relation) FetchOne() (map[string]any, bool) {
	if len(r.Rows) == 0 {
		return nil, false
	}
	return r.rowMap(0), true
}

// FetchAll returns every row as a column-name map.
func (r *Relation) FetchAll() []map[string]any {
	out := make([]map[string]any, len(r.Rows))
	for i := range r.Rows {
		out[i] = r.rowMap(i)
	}
	return out
}

// DF returns the relation as a column-oriented dataframe-like structure:
// column name -> slice of values, matching the shape connectors hand to the
// table-format and warehouse writers.
func (r *Relation) DF() map[string][]any {
	df := make(map[string][]any, len(r.Columns))
	for ci, col := range r.Columns {
		values := make([]any, len(r.Rows))
		for ri, row := range r.Rows {
			values[ri] = row[ci]
		}
		df[col] = values
	}
	return df
}

// Raw is the escape hatch returning the untyped row/column pair directly.
func (r *Relation) Raw() ([]string, [][]any) {
	return r.Columns, r.Rows
}

func (r *Relation) rowMap(i int) map[string]any {
	m := make(map[string]any, len(r.Columns))
	for ci, col := range r.Columns {
		m[col] = r.Rows[i][ci]
	}
	return m
}

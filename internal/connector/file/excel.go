package file

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// decodeExcelRows reads the first sheet of an xlsx workbook and renders it
// as newline-delimited JSON objects keyed by the header row, the shape the
// adapter's ReadJSON ingestion expects. limit<=0 means unbounded.
func decodeExcelRows(data []byte, limit int) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ankaflow: opening workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: reading workbook sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	count := 0
	for _, row := range rows[1:] {
		if limit > 0 && count >= limit {
			break
		}
		rec := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("ankaflow: encoding workbook row: %w", err)
		}
		count++
	}
	return buf.Bytes(), nil
}

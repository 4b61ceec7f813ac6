package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmespath/go-jmespath"

	"github.com/ankaflow/ankaflow/internal/model"
	"github.com/ankaflow/ankaflow/internal/sqlrt"
)

// materializer bridges extracted JSON records into the embedded SQL
// runtime's read_json ingestion, appending across successive pages/polls.
type materializer struct {
	adapter   *sqlrt.Adapter
	stage     string
	fields    model.Columns
	rowCount  int
	firstCall bool
}

var materializeOpts = sqlrt.IngestOptions{CreateWhenNeeded: true}

// extractRecords applies an optional JMESPath locator to pull the record
// array out of an arbitrarily-shaped JSON body; an empty locator means the
// whole body is already the array (or a single record).
func extractRecords(body []byte, locator string) ([]map[string]any, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("ankaflow: decoding rest response body: %w", err)
	}
	if locator != "" {
		extracted, err := jmespath.Search(locator, data)
		if err != nil {
			return nil, fmt.Errorf("ankaflow: evaluating response locator %q: %w", locator, err)
		}
		data = extracted
	}
	switch v := data.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, elem := range v {
			rec, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("ankaflow: rest response element %T is not a record", elem)
			}
			out = append(out, rec)
		}
		return out, nil
	case map[string]any:
		return []map[string]any{v}, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("ankaflow: rest response locator %q did not resolve to records", locator)
	}
}

// append materializes one batch of records into the stage table, creating it
// on the first call and appending on every subsequent one.
func (m *materializer) append(ctx context.Context, records []map[string]any) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return 0, fmt.Errorf("ankaflow: encoding rest records: %w", err)
		}
	}
	if err := m.adapter.ReadJSON(ctx, buf.Bytes(), m.stage, materializeOpts); err != nil {
		return 0, err
	}
	m.rowCount += len(records)
	return len(records), nil
}

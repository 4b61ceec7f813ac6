package ops

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankaflow/ankaflow/internal/sqlrt"
)

func sampleRelation() *sqlrt.Relation {
	return &sqlrt.Relation{
		Columns: []string{"id", "name", "active"},
		Rows: [][]any{
			{int64(1), "alpha", true},
			{int64(2), "beta", false},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, ok := range []string{"csv", "CSV", "json", "parquet", "excel"} {
		f, err := ParseFormat(ok)
		require.NoError(t, err)
		assert.NotEmpty(t, f)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteRelation(FormatCSV, path, sampleRelation()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "active"}, records[0])
	assert.Equal(t, 3, len(records))
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, WriteRelation(FormatJSON, path, sampleRelation()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "alpha", rows[0]["name"])
}

func TestWriteExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, WriteRelation(FormatExcel, path, sampleRelation()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestWriteParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.parquet")
	require.NoError(t, WriteRelation(FormatParquet, path, sampleRelation()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

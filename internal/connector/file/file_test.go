package file

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankaflow/ankaflow/internal/connector"
	"github.com/ankaflow/ankaflow/internal/model"
)

func TestToRecordSliceVariants(t *testing.T) {
	recs, err := toRecordSlice([]map[string]any{{"a": 1}})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = toRecordSlice([]any{map[string]any{"a": 1}})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	recs, err = toRecordSlice(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	_, err = toRecordSlice(42)
	assert.Error(t, err)
}

func TestResolveFormatFromContextOverridesSuffix(t *testing.T) {
	d := connectorDepsForTest("s3://bucket/data.bin")
	c, err := newPolyFileConnector(d)
	require.NoError(t, err)
	pc := c.(*polyFileConnector)
	pc.fileType = "csv"
	format, err := pc.resolveFormat()
	require.NoError(t, err)
	assert.Equal(t, "csv", format)
}

func TestResolveFormatFromSuffix(t *testing.T) {
	d := connectorDepsForTest("s3://bucket/data.parquet")
	c, err := newPolyFileConnector(d)
	require.NoError(t, err)
	pc := c.(*polyFileConnector)
	format, err := pc.resolveFormat()
	require.NoError(t, err)
	assert.Equal(t, "parquet", format)
}

func connectorDepsForTest(locator string) connector.Deps {
	return connector.Deps{
		Stage: "s",
		Conn:  &model.Connection{Locator: locator},
	}
}

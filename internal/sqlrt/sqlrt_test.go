package sqlrt

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFnDtHandlesEpochMagnitudes(t *testing.T) {
	seconds := fnDt(int64(1700000000), "")
	millis := fnDt(int64(1700000000000), "")
	assert.Equal(t, seconds, millis)
}

func TestFnDtISOWithTZSuffix(t *testing.T) {
	out := fnDt("2024-03-01T10:00:00Z", "")
	assert.Contains(t, out, "2024-03-01")
}

func TestFnFiscalPeriodBounds(t *testing.T) {
	p := fnFiscalPeriod("2024-01-08T00:00:00Z")
	assert.GreaterOrEqual(t, p, 1)
	assert.LessOrEqual(t, p, 12)
}

func TestFnMatchPassAndFail(t *testing.T) {
	out, err := fnMatch("abc123", `^[a-z]+\d+$`)
	require.NoError(t, err)
	assert.Equal(t, "abc123", out)

	_, err = fnMatch("???", `^[a-z]+\d+$`)
	assert.Error(t, err)
}

func TestFnBetween(t *testing.T) {
	_, err := fnBetween(5, 1, 10)
	require.NoError(t, err)
	_, err = fnBetween(50, 1, 10)
	assert.Error(t, err)
}

func TestFnCmp(t *testing.T) {
	_, err := fnCmp(5, "gt", 1)
	require.NoError(t, err)
	_, err = fnCmp(5, "lt", 1)
	assert.Error(t, err)
	_, err = fnCmp(5, "bogus", 1)
	assert.Error(t, err)
}

func TestRewriteForSandboxMaterializes(t *testing.T) {
	fetch := func(url string) ([]byte, error) {
		return []byte("data for " + url), nil
	}
	out, err := RewriteForSandbox(`SELECT * FROM read_parquet('s3://bucket/key.parquet')`, fetch)
	require.NoError(t, err)
	assert.NotContains(t, out, "s3://bucket/key.parquet")
	assert.Contains(t, out, "read_parquet(")
}

func TestRewriteForSandboxRejectsGlobs(t *testing.T) {
	fetch := func(url string) ([]byte, error) { return nil, nil }
	_, err := RewriteForSandbox(`SELECT * FROM read_parquet('s3://bucket/*.parquet')`, fetch)
	assert.Error(t, err)
}

func TestRewriteForSandboxLeavesLocalAlone(t *testing.T) {
	fetch := func(url string) ([]byte, error) {
		return nil, fmt.Errorf("should not be called")
	}
	out, err := RewriteForSandbox(`SELECT * FROM read_csv('local/file.csv')`, fetch)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM read_csv('local/file.csv')`, out)
}

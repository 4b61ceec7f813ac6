package path

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchemes(t *testing.T) {
	cases := []struct {
		raw    string
		scheme Scheme
		bucket string
		key    string
	}{
		{"s3://my-bucket/a/b.parquet", SchemeS3, "my-bucket", "a/b.parquet"},
		{"gs://other-bucket/x.csv", SchemeGS, "other-bucket", "x.csv"},
		{"https://example.com/path/to/file", SchemeHTTP, "example.com", "path/to/file"},
		{"ftp://host/file.csv", SchemeFTP, "host", "file.csv"},
		{"relative/local.json", SchemeLocal, "", "relative/local.json"},
	}
	for _, tc := range cases {
		p, err := Parse(tc.raw)
		require.NoError(t, err)
		assert.Equal(t, tc.scheme, p.Scheme)
		assert.Equal(t, tc.bucket, p.Bucket)
		assert.Equal(t, tc.key, p.Key)
	}
}

func TestJoinRejectsAbsolute(t *testing.T) {
	p, err := Parse("s3://bucket/root")
	require.NoError(t, err)
	_, err = p.Join("/etc/passwd")
	assert.Error(t, err)
	_, err = p.Join("s3://other/thing")
	assert.Error(t, err)
}

func TestGetEndpoint(t *testing.T) {
	p, err := Parse("s3://bucket/key")
	require.NoError(t, err)
	ep, err := p.GetEndpoint("us-east-1")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/key", ep)

	ep, err = p.GetEndpoint("")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/key", ep)
}

func TestLocatorResolve(t *testing.T) {
	loc := Locator{Bucket: "s3://root-bucket", Prefix: "data"}

	out, err := loc.Resolve("s3://other/already-absolute.csv", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "s3://other/already-absolute.csv", out)

	out, err = loc.Resolve("/etc/override.csv", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "s3://root-bucket/etc/override.csv", out)

	out, err = loc.Resolve("table.parquet", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "s3://root-bucket/data/table.parquet", out)

	bad := Locator{Bucket: "s3://root-bucket", Prefix: "../escape"}
	_, err = bad.Resolve("name", nil, false)
	assert.Error(t, err)

	missing := Locator{}
	_, err = missing.Resolve("name", nil, false)
	assert.Error(t, err)
}

func TestLocatorResolveWildcard(t *testing.T) {
	loc := Locator{Bucket: "s3://root-bucket"}
	rule := &WildcardRule{Pattern: regexp.MustCompile(`\{env\}`), Replacement: "prod"}

	out, err := loc.Resolve("data/{env}/table.parquet", rule, true)
	require.NoError(t, err)
	assert.Equal(t, "s3://root-bucket/data/prod/table.parquet", out)

	// Without opting in, the placeholder is left alone.
	out, err = loc.Resolve("data/{env}/table.parquet", rule, false)
	require.NoError(t, err)
	assert.Equal(t, "s3://root-bucket/data/{env}/table.parquet", out)
}

func TestRewriteRawSQL(t *testing.T) {
	sql := `SELECT * FROM delta_scan('orders') AS o JOIN read_parquet("orders", union_by_name=true) AS l ON o.id = l.id;`
	out, err := RewriteRawSQL(sql, "orders", "s3://bucket/data/orders")
	require.NoError(t, err)
	assert.Contains(t, out, `delta_scan('s3://bucket/data/orders')`)
	assert.Contains(t, out, `read_parquet("s3://bucket/data/orders", union_by_name=true)`)

	// An argument that doesn't match the connection's short locator is an error.
	_, err = RewriteRawSQL(`SELECT * FROM read_parquet('mismatch')`, "orders", "s3://bucket/data/orders")
	assert.Error(t, err)

	absolute := `SELECT * FROM delta_scan('s3://already/absolute')`
	out, err = RewriteRawSQL(absolute, "orders", "s3://bucket/data/orders")
	require.NoError(t, err)
	assert.Equal(t, absolute, out)
}

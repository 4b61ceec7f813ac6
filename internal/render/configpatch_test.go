package render

import (
	"encoding/json"
	"testing"

	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankaflow/ankaflow/internal/model"
)

// assertJSONShapeEqual compares two values by their marshaled JSON shape,
// independent of map key order, so patched configuration structs don't need
// a field-by-field assertion for every section a patch could touch.
func assertJSONShapeEqual(t *testing.T, want string, got any) {
	t.Helper()
	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)
	diff, explanation := jsondiff.Compare([]byte(want), gotJSON, &jsondiff.Options{})
	assert.Equal(t, jsondiff.FullMatch, diff, explanation)
}

func TestApplyConfigPatchOverridesField(t *testing.T) {
	base := &model.ConnectionConfiguration{S3: &model.S3Config{Bucket: "base-bucket", Region: "us-east-1"}}
	patched, err := ApplyConfigPatch(base, map[string]any{"s3": map[string]any{"bucket": "override-bucket"}})
	require.NoError(t, err)
	assert.Equal(t, "override-bucket", patched.S3.Bucket)
	assert.Equal(t, "us-east-1", patched.S3.Region)
	assert.Equal(t, "base-bucket", base.S3.Bucket, "base must not be mutated")
}

func TestApplyConfigPatchEmptyIsIdentity(t *testing.T) {
	base := &model.ConnectionConfiguration{S3: &model.S3Config{Bucket: "base-bucket"}}
	patched, err := ApplyConfigPatch(base, nil)
	require.NoError(t, err)
	assert.Same(t, base, patched)
}

func TestApplyConfigPatchAddsNewSection(t *testing.T) {
	base := &model.ConnectionConfiguration{}
	patched, err := ApplyConfigPatch(base, map[string]any{"rowdb": map[string]any{"host": "ch.internal", "port": 9000}})
	require.NoError(t, err)
	require.NotNil(t, patched.RowDB)
	assert.Equal(t, "ch.internal", patched.RowDB.Host)
	assert.EqualValues(t, 9000, patched.RowDB.Port)
}

func TestApplyConfigPatchShapeMatchesExpectedJSON(t *testing.T) {
	base := &model.ConnectionConfiguration{
		S3: &model.S3Config{Bucket: "base-bucket", Region: "us-east-1"},
	}
	patched, err := ApplyConfigPatch(base, map[string]any{
		"s3":    map[string]any{"bucket": "override-bucket"},
		"rowdb": map[string]any{"host": "ch.internal", "port": 9000},
	})
	require.NoError(t, err)

	// Key order here is deliberately different from struct field order;
	// jsondiff compares by JSON shape, not by serialized byte order.
	want := `{
		"rowdb": {"host": "ch.internal", "port": 9000},
		"s3": {"bucket": "override-bucket", "region": "us-east-1"}
	}`
	assertJSONShapeEqual(t, want, patched)
}

package render

import (
	"encoding/json"
	"testing"

	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankaflow/ankaflow/internal/model"
)

// assertJSONEqual compares two values by their JSON shape rather than by Go
// type/ordering, so callers don't need to hand-construct the exact nested
// map/slice types the renderer happens to produce for @json output.
func assertJSONEqual(t *testing.T, want string, got any) {
	t.Helper()
	gotJSON, err := json.Marshal(got)
	require.NoError(t, err)
	diff, explanation := jsondiff.Compare([]byte(want), gotJSON, &jsondiff.Options{})
	assert.Equal(t, jsondiff.FullMatch, diff, explanation)
}

func newRenderer() *Renderer {
	return New(&API{Vars: model.NewVariables(), Context: model.FlowContext{}})
}

func TestRenderVariableSubstitution(t *testing.T) {
	r := newRenderer()
	out, err := r.Render("hello <<name>>", map[string]any{"name": "world"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestRenderDottedContext(t *testing.T) {
	r := newRenderer()
	scope := map[string]any{"env": map[string]any{"region": "us-east-1"}}
	out, err := r.Render("region=<<env.region>>", scope, Options{})
	require.NoError(t, err)
	assert.Equal(t, "region=us-east-1", out)
}

func TestRenderCommentsStripped(t *testing.T) {
	r := newRenderer()
	out, err := r.Render("before<# a note #>after", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, "beforeafter", out)
}

func TestRenderControlBlock(t *testing.T) {
	r := newRenderer()
	tmpl := "<% if .active %>on<% else %>off<% end %>"
	out, err := r.Render(tmpl, map[string]any{"active": true}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "on", out)
}

func TestRenderInferType(t *testing.T) {
	r := newRenderer()
	out, err := r.Render("<<count>>", map[string]any{"count": "42"}, Options{InferType: true})
	require.NoError(t, err)
	assert.Equal(t, int64(42), out)

	out, err = r.Render("<<flag>>", map[string]any{"flag": "true"}, Options{InferType: true})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = r.Render("plain text", nil, Options{InferType: true})
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestRenderJSONMarker(t *testing.T) {
	r := newRenderer()
	scope := map[string]any{"ids": "[1, 2, 3]"}
	out, err := r.Render("@json <<ids>>", scope, Options{})
	require.NoError(t, err)
	assertJSONEqual(t, `[1, 2, 3]`, out)
}

func TestRenderDeprecatedJSONMarker(t *testing.T) {
	r := newRenderer()
	out, err := r.Render(`JSON> {"a": 1}`, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1.0}, out)
}

func TestRenderNestedJSONMarkerRejected(t *testing.T) {
	r := newRenderer()
	_, err := r.Render("@json @json {}", nil, Options{})
	assert.Error(t, err)
}

func TestRenderRecursesIntoMapsAndSlices(t *testing.T) {
	r := newRenderer()
	scope := map[string]any{"x": "1"}
	value := map[string]any{
		"a": "<<x>>",
		"b": []any{"<<x>>", 5, map[string]any{"c": "<<x>>"}},
	}
	out, err := r.Render(value, scope, Options{})
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, "1", m["a"])
	b := m["b"].([]any)
	assert.Equal(t, "1", b[0])
	assert.Equal(t, 5, b[1])
	assert.Equal(t, "1", b[2].(map[string]any)["c"])
}

func TestRenderFilters(t *testing.T) {
	r := newRenderer()
	out, err := r.Render("<<n | int>>", map[string]any{"n": "7"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "7", out)

	out, err = r.Render("<<obj | tojson>>", map[string]any{"obj": map[string]any{"k": "v"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"v"}`, out)
}

func TestAPILookFallsBackToContext(t *testing.T) {
	api := &API{Vars: model.NewVariables(), Context: model.FlowContext{"region": "eu-west-1"}}
	assert.Equal(t, "eu-west-1", api.look("region", "default"))
	assert.Equal(t, "default", api.look("missing", "default"))
}

func TestAPISetvariablePersists(t *testing.T) {
	vars := model.NewVariables()
	api := &API{Vars: vars}
	r := New(api)
	_, err := r.Render("<<setvariable \"n\" 10>>", nil, Options{})
	require.NoError(t, err)
	v, ok := vars.Get("n")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestAPIErrorAbortsRender(t *testing.T) {
	r := newRenderer()
	_, err := r.Render(`<<error "boom">>`, nil, Options{})
	assert.Error(t, err)
}

func TestSqltuple(t *testing.T) {
	out, err := sqltuple([]any{"a", 1, nil})
	require.NoError(t, err)
	assert.Equal(t, "('a', 1, NULL)", out)
}

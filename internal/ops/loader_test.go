package ops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPathDemo(t *testing.T) {
	stages, err := LoadPath("DEMO")
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, "demo", stages[0].Name)
}

func TestLoadPathDemoCaseInsensitive(t *testing.T) {
	stages, err := LoadPath("demo")
	require.NoError(t, err)
	require.Len(t, stages, 1)
}

func TestLoadPathFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
- kind: internal
  name: one
  query: "SELECT 1"
`), 0o644))

	stages, err := LoadPath(p)
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, "one", stages[0].Name)
}

func TestLoadReader(t *testing.T) {
	stages, err := LoadReader(strings.NewReader(`
- kind: internal
  name: a
  query: "SELECT 1"
- kind: internal
  name: b
  query: "SELECT 2"
`))
	require.NoError(t, err)
	require.Len(t, stages, 2)
}

func TestLoadTextRejectsNonList(t *testing.T) {
	_, err := LoadText([]byte(`kind: internal`))
	assert.Error(t, err)
}

func TestLoadTextRejectsDuplicateNames(t *testing.T) {
	_, err := LoadText([]byte(`
- kind: internal
  name: dup
  query: "SELECT 1"
- kind: internal
  name: dup
  query: "SELECT 2"
`))
	assert.Error(t, err)
}

func TestLoadPathMissingFile(t *testing.T) {
	_, err := LoadPath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package rank

import (
	"testing"

	"github.com/bradleyjkemp/cupaloy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteWithoutVersioning(t *testing.T) {
	sql, where, err := Rewrite(`SELECT * FROM __SELECTABLE__`, "delta_scan('orders')", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "", where)
	assert.Contains(t, sql, "delta_scan('orders')")
}

func TestRewriteWithVersioning(t *testing.T) {
	sql, where, err := Rewrite(`SELECT * FROM __SELECTABLE__`, "delta_scan('orders')", "updated_at", []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, "__rank__ = 1", where)
	assert.Contains(t, sql, "ROW_NUMBER() OVER (PARTITION BY id ORDER BY updated_at DESC)")
	assert.Contains(t, sql, "delta_scan('orders')")
}

func TestRewriteRejectsCTE(t *testing.T) {
	_, _, err := Rewrite(`WITH recent AS (SELECT 1) SELECT * FROM __SELECTABLE__`, "t", "v", []string{"id"})
	assert.Error(t, err)
}

func TestRewriteRejectsGroupBy(t *testing.T) {
	_, _, err := Rewrite(`SELECT id, count(*) FROM __SELECTABLE__ GROUP BY id`, "t", "v", []string{"id"})
	assert.Error(t, err)
}

func TestRewriteRejectsAggregate(t *testing.T) {
	_, _, err := Rewrite(`SELECT sum(amount) FROM __SELECTABLE__`, "t", "v", []string{"id"})
	assert.Error(t, err)
}

func TestRewriteRequiresSelectablePlaceholder(t *testing.T) {
	_, _, err := Rewrite(`SELECT * FROM orders`, "t", "", nil)
	assert.Error(t, err)
}

// TestRewriteSnapshot pins the exact shape of the ranked-subquery rewrite:
// a regression here usually means the ROW_NUMBER() wrapping changed in a
// way that would silently break every versioned connector's WHERE clause.
func TestRewriteSnapshot(t *testing.T) {
	sql, where, err := Rewrite(
		`SELECT id, amount FROM __SELECTABLE__ WHERE amount > 0`,
		`delta_scan('s3://bucket/orders')`, "updated_at", []string{"id", "region"},
	)
	require.NoError(t, err)
	cupaloy.SnapshotT(t, sql, where)
}

package connector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankaflow/ankaflow/internal/model"
)

func TestRegisterAndNew(t *testing.T) {
	kind := model.ConnectionKind("test-kind")
	Register(kind, func(d Deps) (Connector, error) {
		return nil, nil
	})
	_, err := New(Deps{Stage: "s", Conn: &model.Connection{Kind: kind}})
	require.NoError(t, err)
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(Deps{Stage: "s", Conn: &model.Connection{Kind: "does-not-exist"}})
	assert.Error(t, err)
}

func TestNewNilConnection(t *testing.T) {
	_, err := New(Deps{Stage: "s"})
	assert.Error(t, err)
}

func TestBaseRankShortCircuitsWhenNotVersioned(t *testing.T) {
	b := NewBase(Deps{Stage: "s", Conn: &model.Connection{}})
	sql, where, err := b.Rank("SELECT 1", "t")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", sql)
	assert.Equal(t, "", where)
}

func TestBaseResolveLocator(t *testing.T) {
	b := NewBase(Deps{Stage: "s", Conn: &model.Connection{Locator: "s3://bucket"}})
	out, err := b.ResolveLocator("table.parquet", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/table.parquet", out)
}

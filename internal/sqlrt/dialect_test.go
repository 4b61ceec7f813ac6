package sqlrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateStatementsCreateOrReplaceTable(t *testing.T) {
	stmts := translateStatements(`CREATE OR REPLACE TABLE "orders" AS SELECT * FROM "staging"`)
	require.Len(t, stmts, 2)
	assert.Equal(t, `DROP TABLE IF EXISTS "orders"`, stmts[0])
	assert.Equal(t, `CREATE TABLE "orders" AS SELECT * FROM "staging"`, stmts[1])
}

func TestTranslateStatementsCreateOrReplaceView(t *testing.T) {
	stmts := translateStatements(`CREATE OR REPLACE VIEW "v" AS SELECT 1`)
	require.Len(t, stmts, 2)
	assert.Equal(t, `DROP VIEW IF EXISTS "v"`, stmts[0])
	assert.Equal(t, `CREATE VIEW "v" AS SELECT 1`, stmts[1])
}

func TestTranslateStatementsFromFirstShorthand(t *testing.T) {
	stmts := translateStatements(`CREATE TABLE "orders" AS FROM "staging"`)
	require.Len(t, stmts, 1)
	assert.Equal(t, `CREATE TABLE "orders" AS SELECT * FROM "staging"`, stmts[0])
}

func TestTranslateStatementsCombinesReplaceAndFromFirst(t *testing.T) {
	stmts := translateStatements(`CREATE OR REPLACE TABLE "orders" AS FROM "staging"`)
	require.Len(t, stmts, 2)
	assert.Equal(t, `DROP TABLE IF EXISTS "orders"`, stmts[0])
	assert.Equal(t, `CREATE TABLE "orders" AS SELECT * FROM "staging"`, stmts[1])
}

func TestTranslateStatementsCastSuffix(t *testing.T) {
	stmts := translateStatements(`SELECT COUNT(*)::UBIGINT AS n FROM "t"`)
	require.Len(t, stmts, 1)
	assert.Equal(t, `SELECT CAST(COUNT(*) AS INTEGER) AS n FROM "t"`, stmts[0])
}

func TestTranslateStatementsUnknownCastPassesThroughUppercased(t *testing.T) {
	stmts := translateStatements(`SELECT amount::DECIMAL AS n`)
	assert.Equal(t, `SELECT CAST(amount AS DECIMAL) AS n`, stmts[0])
}

func TestTranslateStatementsLeavesOrdinarySQLUnchanged(t *testing.T) {
	stmts := translateStatements(`SELECT * FROM "orders" WHERE id = 1`)
	require.Len(t, stmts, 1)
	assert.Equal(t, `SELECT * FROM "orders" WHERE id = 1`, stmts[0])
}

package llmsql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankaflow/ankaflow/internal/model"
)

func TestExtractSQLBare(t *testing.T) {
	sql, err := extractSQL("SELECT * FROM orders;")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM orders", sql)
}

func TestExtractSQLFenced(t *testing.T) {
	raw := "Here you go:\n```sql\nSELECT id FROM users\n```\nLet me know if you need more."
	sql, err := extractSQL(raw)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users", sql)
}

func TestExtractSQLInlineInProse(t *testing.T) {
	raw := "Sure, you can use this query: SELECT id, name FROM customers WHERE active = 1"
	sql, err := extractSQL(raw)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name FROM customers WHERE active = 1", sql)
}

func TestExtractSQLEmpty(t *testing.T) {
	_, err := extractSQL("   ")
	require.Error(t, err)
}

func TestExtractSQLNoStatement(t *testing.T) {
	_, err := extractSQL("I'm not sure what you mean.")
	require.Error(t, err)
}

func TestMockClientPassesThroughSelect(t *testing.T) {
	c := &mockClient{retries: 1}
	out, err := c.Generate(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)
}

func TestMockClientRejectsNonSQLPrompt(t *testing.T) {
	c := &mockClient{retries: 1}
	_, err := c.Generate(context.Background(), "describe the orders table")
	require.Error(t, err)
}

func TestNewClientMockProtocol(t *testing.T) {
	c, err := newClient(&model.LLMConfig{Protocol: "mock"})
	require.NoError(t, err)
	assert.Equal(t, 3, c.MaxRetries())
}

func TestNewClientUnknownProtocol(t *testing.T) {
	_, err := newClient(&model.LLMConfig{Protocol: "carrier-pigeon"})
	require.Error(t, err)
}

func TestNewClientOpenAIRequiresAPIKey(t *testing.T) {
	_, err := newClient(&model.LLMConfig{Protocol: "openai"})
	require.Error(t, err)
}

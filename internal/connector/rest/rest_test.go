package rest

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankaflow/ankaflow/internal/errs"
	"github.com/ankaflow/ankaflow/internal/model"
)

func TestClassifyRateLimit(t *testing.T) {
	resp := &wrappedResponse{status: http.StatusTooManyRequests, url: "http://x"}
	err := classify(resp, &model.RESTRequest{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.RestRateLimit))
}

func TestClassifyServerErrorRetryable(t *testing.T) {
	resp := &wrappedResponse{status: 503, url: "http://x"}
	err := classify(resp, &model.RESTRequest{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.RestRetryable))
}

func TestClassifyClientErrorNonRetryable(t *testing.T) {
	resp := &wrappedResponse{status: 404, url: "http://x"}
	err := classify(resp, &model.RESTRequest{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.RestRequest))
}

func TestClassifyOKPassesThrough(t *testing.T) {
	resp := &wrappedResponse{status: 200, url: "http://x", body: []byte(`{"a":1}`)}
	err := classify(resp, &model.RESTRequest{})
	assert.NoError(t, err)
}

func TestClassifyErrorStatusCodesOverride(t *testing.T) {
	resp := &wrappedResponse{status: 200, url: "http://x", body: []byte(`{}`)}
	req := &model.RESTRequest{ErrorHandler: &model.RESTErrorHandler{ErrorStatusCode: []int{200}}}
	err := classify(resp, req)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.RestRequest))
}

func TestClassifyConditionTruthy(t *testing.T) {
	resp := &wrappedResponse{status: 200, url: "http://x", body: []byte(`{"error":true}`)}
	req := &model.RESTRequest{ErrorHandler: &model.RESTErrorHandler{Condition: "error"}}
	err := classify(resp, req)
	require.Error(t, err)
}

func TestExtractRecordsWithLocator(t *testing.T) {
	body := []byte(`{"data":{"items":[{"id":1},{"id":2}]}}`)
	records, err := extractRecords(body, "data.items")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.EqualValues(t, 1, records[0]["id"])
}

func TestExtractRecordsNoLocator(t *testing.T) {
	body := []byte(`[{"id":1}]`)
	records, err := extractRecords(body, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestExtractRecordsSingleObject(t *testing.T) {
	body := []byte(`{"id":1}`)
	records, err := extractRecords(body, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestApplyQueryEncodesParams(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.com/x", nil)
	require.NoError(t, err)
	applyQuery(req, map[string]any{"page": 2, "size": 10})
	assert.Contains(t, req.URL.RawQuery, "page=2")
	assert.Contains(t, req.URL.RawQuery, "size=10")
}

func TestEvalJMESPathInt(t *testing.T) {
	v, err := evalJMESPathInt([]byte(`{"total":42}`), "total")
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestEvalJMESPathString(t *testing.T) {
	v, err := evalJMESPathString([]byte(`{"status":"done"}`), "status")
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestBearerTokenUsesStaticTokenWhenPresent(t *testing.T) {
	tok, err := bearerToken(&model.RESTAuth{Kind: model.AuthOAuth2, Token: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, "abc123", tok)
}

func TestBearerTokenSignsClientAssertion(t *testing.T) {
	tok, err := bearerToken(&model.RESTAuth{
		Kind:     model.AuthOAuth2,
		ClientID: "client-1",
		Secret:   "shh",
		TokenURL: "https://auth.example.com/token",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, 3, len(strings.Split(tok, ".")))
}

func TestBearerTokenFailsWithoutCredentials(t *testing.T) {
	_, err := bearerToken(&model.RESTAuth{Kind: model.AuthOAuth2})
	assert.Error(t, err)
}

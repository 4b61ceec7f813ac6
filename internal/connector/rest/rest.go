// Package rest implements the §4.J REST connector: request building, auth
// variants, retry/backoff classification, and the four polymorphic
// response handlers.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmespath/go-jmespath"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/ankaflow/ankaflow/internal/connector"
	"github.com/ankaflow/ankaflow/internal/errs"
	"github.com/ankaflow/ankaflow/internal/model"
)

func init() {
	connector.Register(model.ConnREST, newConnector)
}

type restConnector struct {
	connector.Base
	client  *http.Client
	cfg     *model.RESTClient
	limiter *rate.Limiter
}

func newConnector(d connector.Deps) (connector.Connector, error) {
	if d.Conn.Client == nil || d.Conn.Request == nil {
		return nil, fmt.Errorf("ankaflow: rest connection requires client and request blocks")
	}
	timeout := 30 * time.Second
	if d.Conn.Client.TimeoutMS > 0 {
		timeout = time.Duration(d.Conn.Client.TimeoutMS) * time.Millisecond
	}
	limit := rate.Limit(50)
	if d.Conn.Client.Throttle > 0 {
		limit = rate.Limit(d.Conn.Client.Throttle)
	}
	// A cookie jar is required for paginator/polling handlers that follow a
	// server's session cookie across a sequence of requests to the same
	// host; PublicSuffixList keeps cookies scoped to the registrable
	// domain rather than leaking across sibling subdomains.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("ankaflow: creating rest cookie jar: %w", err)
	}
	return &restConnector{
		Base:    connector.NewBase(d),
		client:  &http.Client{Timeout: timeout, Jar: jar},
		cfg:     d.Conn.Client,
		limiter: rate.NewLimiter(limit, 1),
	}, nil
}

func (c *restConnector) Tap(ctx context.Context, query string, limit int) error {
	req := c.Conn.Request
	if req.Response == nil {
		return fmt.Errorf("ankaflow: rest request requires a response block")
	}
	materializer := &materializer{adapter: c.Adapter, stage: c.Stage, fields: c.Conn.Fields}

	switch req.Response.Kind {
	case model.ResponseBasic:
		return c.handleBasic(ctx, req, materializer)
	case model.ResponsePaginator:
		return c.handlePaginator(ctx, req, materializer)
	case model.ResponseURLPolling:
		return c.handleURLPolling(ctx, req, materializer)
	case model.ResponseStatePoll:
		return c.handleStatePoll(ctx, req, materializer)
	default:
		return fmt.Errorf("ankaflow: unknown rest response kind %q", req.Response.Kind)
	}
}

func (c *restConnector) Sink(ctx context.Context, fromName string) error {
	return fmt.Errorf("ankaflow: the rest connector is tap-only")
}

func (c *restConnector) SQL(ctx context.Context, statement string) error {
	return fmt.Errorf("ankaflow: the rest connector does not support sql()")
}

func (c *restConnector) ShowSchema(ctx context.Context) (model.Columns, error) {
	return c.ProbeSchema(ctx)
}

// wrappedResponse exposes ok/status/url/encoding/json/text/bytes over a raw
// *http.Response, matching §4.J's transport-agnostic surface.
type wrappedResponse struct {
	status   int
	url      string
	encoding string
	body     []byte
}

func (w *wrappedResponse) ok() bool           { return w.status >= 200 && w.status < 300 }
func (w *wrappedResponse) text() string       { return string(w.body) }
func (w *wrappedResponse) bytesBody() []byte  { return w.body }
func (w *wrappedResponse) jsonValue() (any, error) {
	var v any
	if err := json.Unmarshal(w.body, &v); err != nil {
		return nil, fmt.Errorf("ankaflow: decoding JSON response from %s: %w", w.url, err)
	}
	return v, nil
}

// do executes one HTTP round trip with the request's auth and content-type,
// classifying failures and retrying per §4.J.
func (c *restConnector) do(ctx context.Context, req *model.RESTRequest, query map[string]any, body any) (*wrappedResponse, error) {
	var resp *wrappedResponse
	attempt := 0
	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	initial := time.Duration(req.InitialBackoff * float64(time.Second))
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(backoff.WithInitialInterval(initial)), uint64(maxRetries))

	op := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		r, err := c.roundTrip(ctx, req, query, body)
		if err != nil {
			return err
		}
		classErr := classify(r, req)
		if classErr == nil {
			resp = r
			return nil
		}
		if errs.Is(classErr, errs.RestRateLimit) || errs.Is(classErr, errs.RestRetryable) {
			return classErr
		}
		return backoff.Permanent(classErr)
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		if permanent, ok := err.(*backoff.PermanentError); ok {
			return nil, permanent.Err
		}
		return nil, err
	}
	return resp, nil
}

func (c *restConnector) roundTrip(ctx context.Context, req *model.RESTRequest, query map[string]any, body any) (*wrappedResponse, error) {
	url := c.cfg.BaseURL + req.Endpoint
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ankaflow: encoding rest request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: building rest request: %w", err)
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	if err := applyAuth(httpReq, c.cfg.Auth); err != nil {
		return nil, err
	}
	applyQuery(httpReq, query)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, errs.Wrap(errs.RestRetryable, err, "ankaflow: rest request to %s failed", url)
	}
	defer httpResp.Body.Close()
	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("ankaflow: reading rest response: %w", err)
	}
	return &wrappedResponse{
		status:   httpResp.StatusCode,
		url:      url,
		encoding: httpResp.Header.Get("Content-Encoding"),
		body:     data,
	}, nil
}

func applyAuth(r *http.Request, auth *model.RESTAuth) error {
	if auth == nil {
		return nil
	}
	switch auth.Kind {
	case model.AuthBasic:
		r.SetBasicAuth(auth.Username, auth.Password)
	case model.AuthHeader:
		for k, v := range auth.Headers {
			r.Header.Set(k, v)
		}
	case model.AuthOAuth2:
		token, err := bearerToken(auth)
		if err != nil {
			return err
		}
		r.Header.Set("Authorization", "Bearer "+token)
	case model.AuthDigest:
		// Digest auth is not negotiated: the request is sent without
		// credentials, and a 401 challenge from the server is classified as a
		// non-retryable request error.
		log.Debug("ankaflow: digest auth challenge not yet negotiated on first request")
	}
	return nil
}

func applyQuery(r *http.Request, query map[string]any) {
	if len(query) == 0 {
		return
	}
	q := r.URL.Query()
	for k, v := range query {
		q.Set(k, fmt.Sprintf("%v", v))
	}
	r.URL.RawQuery = q.Encode()
}

// classify maps a response onto the §4.J error taxonomy: 429 -> rate
// limit, 5xx -> retryable, 4xx -> request error, a configured JMESPath
// condition evaluating truthy -> request error, status in
// error_status_codes -> request error.
func classify(resp *wrappedResponse, req *model.RESTRequest) error {
	switch {
	case resp.status == http.StatusTooManyRequests:
		return errs.New(errs.RestRateLimit, "ankaflow: rest request to %s rate limited", resp.url)
	case resp.status >= 500:
		return errs.New(errs.RestRetryable, "ankaflow: rest request to %s failed with %d", resp.url, resp.status)
	case resp.status >= 400:
		return errs.New(errs.RestRequest, "ankaflow: rest request to %s failed with %d", resp.url, resp.status)
	}
	if req.ErrorHandler != nil && req.ErrorHandler.Condition != "" {
		if truthy, _ := evalJMESPathTruthy(resp.body, req.ErrorHandler.Condition); truthy {
			return errs.New(errs.RestRequest, "ankaflow: rest response from %s matched error condition", resp.url)
		}
	}
	for _, code := range errorStatusCodes(req) {
		if code == resp.status {
			return errs.New(errs.RestRequest, "ankaflow: rest response from %s matched error_status_codes", resp.url)
		}
	}
	return nil
}

func errorStatusCodes(req *model.RESTRequest) []int {
	if req.ErrorHandler == nil {
		return nil
	}
	return req.ErrorHandler.ErrorStatusCode
}

func evalJMESPathTruthy(body []byte, expr string) (bool, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return false, err
	}
	result, err := jmespath.Search(expr, data)
	if err != nil {
		return false, err
	}
	switch v := result.(type) {
	case bool:
		return v, nil
	case nil:
		return false, nil
	default:
		return true, nil
	}
}

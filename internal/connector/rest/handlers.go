package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jmespath/go-jmespath"

	"github.com/ankaflow/ankaflow/internal/model"
)

// handleBasic issues one request and materializes its body, per §4.J's
// simplest response handler.
func (c *restConnector) handleBasic(ctx context.Context, req *model.RESTRequest, m *materializer) error {
	resp, err := c.do(ctx, req, req.Query, req.Body)
	if err != nil {
		return err
	}
	records, err := extractRecords(resp.body, req.Response.Locator)
	if err != nil {
		return err
	}
	_, err = m.append(ctx, records)
	return err
}

// handlePaginator repeatedly requests successive pages until a page returns
// fewer than page_size records, or the extracted total_records count is
// reached, whichever comes first.
func (c *restConnector) handlePaginator(ctx context.Context, req *model.RESTRequest, m *materializer) error {
	resp := req.Response
	page := resp.PageInitial
	increment := resp.Increment
	if increment == 0 {
		increment = 1
	}
	var total = -1

	for {
		query := cloneMap(req.Query)
		body := cloneMap(req.Body)
		if resp.PageIn == "body" {
			body[resp.PageParam] = page
		} else {
			query[resp.PageParam] = page
		}

		r, err := c.do(ctx, req, query, body)
		if err != nil {
			return err
		}
		records, err := extractRecords(r.body, resp.Locator)
		if err != nil {
			return err
		}
		if total < 0 && resp.TotalRecord != "" {
			if v, err := evalJMESPathInt(r.body, resp.TotalRecord); err == nil {
				total = v
			}
		}
		n, err := m.append(ctx, records)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if total >= 0 && m.rowCount >= total {
			return nil
		}
		if resp.PageSize > 0 && n < resp.PageSize {
			return nil
		}
		page += increment
	}
}

// handleURLPolling kicks off an async job, reads the poll URL out of the
// kickoff response, then polls that URL until its status reaches
// ready_status before fetching and materializing the final payload.
func (c *restConnector) handleURLPolling(ctx context.Context, req *model.RESTRequest, m *materializer) error {
	kickoff, err := c.do(ctx, req, req.Query, req.Body)
	if err != nil {
		return err
	}
	resp := req.Response
	pollURL, err := evalJMESPathString(kickoff.body, resp.PollURLLocator)
	if err != nil {
		return fmt.Errorf("ankaflow: extracting poll URL: %w", err)
	}

	final, err := c.pollUntilReady(ctx, pollURL, resp)
	if err != nil {
		return err
	}
	records, err := extractRecords(final.body, resp.Locator)
	if err != nil {
		return err
	}
	_, err = m.append(ctx, records)
	return err
}

// handleStatePoll kicks off an async job, then repeatedly re-requests a
// fixed poll_endpoint until the state reaches ready_status.
func (c *restConnector) handleStatePoll(ctx context.Context, req *model.RESTRequest, m *materializer) error {
	if _, err := c.do(ctx, req, req.Query, req.Body); err != nil {
		return err
	}
	resp := req.Response
	pollReq := &model.RESTRequest{
		Endpoint:       resp.PollEndpoint,
		Method:         "GET",
		MaxRetries:     req.MaxRetries,
		InitialBackoff: req.InitialBackoff,
	}
	final, err := c.pollRequestUntilReady(ctx, pollReq, resp)
	if err != nil {
		return err
	}
	records, err := extractRecords(final.body, resp.Locator)
	if err != nil {
		return err
	}
	_, err = m.append(ctx, records)
	return err
}

func (c *restConnector) pollUntilReady(ctx context.Context, pollURL string, resp *model.RESTResponse) (*wrappedResponse, error) {
	interval := time.Duration(resp.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 2 * time.Second
	}
	maxPolls := resp.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 60
	}

	for attempt := 0; attempt < maxPolls; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
		if err != nil {
			return nil, fmt.Errorf("ankaflow: building poll request to %s: %w", pollURL, err)
		}
		if err := applyAuth(httpReq, c.cfg.Auth); err != nil {
			return nil, err
		}
		httpResp, err := c.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("ankaflow: polling %s: %w", pollURL, err)
		}
		data, err := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("ankaflow: reading poll response from %s: %w", pollURL, err)
		}
		r := &wrappedResponse{status: httpResp.StatusCode, url: pollURL, body: data}
		status, err := evalJMESPathString(r.body, resp.StatusLocator)
		if err == nil && status == resp.ReadyStatus {
			return r, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, fmt.Errorf("ankaflow: polling %s: exceeded max_polls without reaching ready_status", pollURL)
}

func (c *restConnector) pollRequestUntilReady(ctx context.Context, req *model.RESTRequest, resp *model.RESTResponse) (*wrappedResponse, error) {
	interval := time.Duration(resp.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 2 * time.Second
	}
	maxPolls := resp.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 60
	}

	for attempt := 0; attempt < maxPolls; attempt++ {
		r, err := c.do(ctx, req, nil, nil)
		if err != nil {
			return nil, err
		}
		status, err := evalJMESPathString(r.body, resp.StatusLocator)
		if err == nil && status == resp.ReadyStatus {
			return r, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, fmt.Errorf("ankaflow: polling %s: exceeded max_polls without reaching ready_status", req.Endpoint)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func evalJMESPathInt(body []byte, expr string) (int, error) {
	v, err := evalJMESPathAny(body, expr)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("ankaflow: jmespath result %T is not numeric", v)
	}
}

func evalJMESPathString(body []byte, expr string) (string, error) {
	v, err := evalJMESPathAny(body, expr)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("ankaflow: jmespath result %T is not a string", v)
	}
	return s, nil
}

func evalJMESPathAny(body []byte, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("ankaflow: empty jmespath expression")
	}
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}
	return jmespath.Search(expr, data)
}

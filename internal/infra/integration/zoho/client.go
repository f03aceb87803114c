package zoho

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xavierca1/leadsync/internal/entity"
)

const (
	leadsPath       = "/crm/v6/Leads"
	maxResponseBody = 1 << 20
	maxErrorSnippet = 300
)

// Client creates records in the Zoho CRM Leads module.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	trigger []string
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRateLimit caps outgoing CRM calls per second.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithTriggers sets the automation the CRM runs on insert (e.g. "workflow").
func WithTriggers(triggers ...string) ClientOption {
	return func(c *Client) { c.trigger = triggers }
}

func NewClient(apiURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: apiURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		trigger: []string{"workflow"},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateLead posts one lead. Transport errors, 5xx, 429 and 2xx responses
// without a record id are transient; every other non-2xx status is terminal.
func (c *Client) CreateLead(ctx context.Context, lead entity.ExternalLead, accessToken string) entity.ProcessingResult {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return entity.Failed(entity.FailureTransient, 0, "rate limit wait: "+err.Error())
		}
	}

	payload, err := json.Marshal(createLeadsRequest{Data: []entity.ExternalLead{lead}, Trigger: c.trigger})
	if err != nil {
		return entity.Failed(entity.FailureTerminal, 0, "encode lead: "+err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+leadsPath, bytes.NewReader(payload))
	if err != nil {
		return entity.Failed(entity.FailureTerminal, 0, "build request: "+err.Error())
	}
	req.Header.Set("Authorization", "Zoho-oauthtoken "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return entity.Failed(entity.FailureTransient, 0, "zoho request failed: "+err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return entity.Failed(entity.FailureTransient, resp.StatusCode, "read zoho response: "+err.Error())
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return parseCreated(resp.StatusCode, body)
	}

	msg := fmt.Sprintf("zoho api error %d: %s", resp.StatusCode, describeError(body))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return entity.Failed(entity.FailureTransient, resp.StatusCode, msg)
	}
	return entity.Failed(entity.FailureTerminal, resp.StatusCode, msg)
}

func parseCreated(status int, body []byte) entity.ProcessingResult {
	var out createLeadsResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return entity.Failed(entity.FailureTransient, status, "no id returned: undecodable response")
		}
	}

	if len(out.Data) > 0 && out.Data[0].Details.ID != "" {
		r := entity.Succeeded(out.Data[0].Details.ID)
		r.StatusCode = status
		return r
	}

	// Retrying may create a duplicate if the record was in fact stored.
	zap.L().Warn("zoho accepted lead without returning an id", zap.Int("status_code", status), zap.String("body", snippet(body)))

	msg := "no id returned"
	if len(out.Data) > 0 && (out.Data[0].Code != "" || out.Data[0].Message != "") {
		msg = fmt.Sprintf("no id returned: %s %s", out.Data[0].Code, out.Data[0].Message)
	}
	return entity.Failed(entity.FailureTransient, status, msg)
}

func describeError(body []byte) string {
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && (e.Code != "" || e.Message != "") {
		return fmt.Sprintf("%s %s", e.Code, e.Message)
	}
	var rows createLeadsResponse
	if err := json.Unmarshal(body, &rows); err == nil && len(rows.Data) > 0 {
		return fmt.Sprintf("%s %s", rows.Data[0].Code, rows.Data[0].Message)
	}
	return snippet(body)
}

func snippet(body []byte) string {
	if len(body) > maxErrorSnippet {
		return string(body[:maxErrorSnippet]) + "..."
	}
	return string(body)
}

package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Ealanisln/alanis-backend/internal/outbox"
	"github.com/Ealanisln/alanis-backend/prometheus"
)

// Workflow names understood by the automation side
const (
	WorkflowTimeTracked          = "time-tracked"
	WorkflowLowHoursAlert        = "low-hours-alert"
	WorkflowProjectApproved      = "project-approved"
	WorkflowProjectStatusChanged = "project-status-changed"
	WorkflowInvoiceCreated       = "invoice-created"
	WorkflowWeeklyReport         = "weekly-report"
)

// TimestampLayout is the ISO-8601 UTC layout with milliseconds used in payloads
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const pingTimeout = 5 * time.Second

// Tenant identifies the tenant a workflow runs for
type Tenant struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

// Payload is the JSON body posted to a workflow webhook
type Payload struct {
	Workflow  string      `json:"workflow"`
	Tenant    Tenant      `json:"tenant"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewPayload builds a payload stamped with now in UTC
func NewPayload(workflow string, tenant Tenant, data interface{}, now time.Time) Payload {
	return Payload{
		Workflow:  workflow,
		Tenant:    tenant,
		Timestamp: now.UTC().Format(TimestampLayout),
		Data:      data,
	}
}

// Client posts workflow payloads to an n8n webhook base URL
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new n8n client instance
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a webhook URL is configured
func (c *Client) Enabled() bool {
	return c != nil && c.BaseURL != ""
}

// Trigger posts the payload to <BaseURL>/<workflow>. Any non-2xx answer is an
// error; 4xx answers are marked permanent because resending cannot fix them.
func (c *Client) Trigger(ctx context.Context, payload Payload) (err error) {
	defer func() { prometheus.RecordIntegrationCall("n8n", "trigger", err) }()

	body, err := json.Marshal(payload)
	if err != nil {
		return outbox.Permanent(fmt.Errorf("encode workflow payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.BaseURL, payload.Workflow), bytes.NewReader(body))
	if err != nil {
		return outbox.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("trigger workflow %s: %w", payload.Workflow, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := fmt.Errorf("trigger workflow %s: %d %s", payload.Workflow, resp.StatusCode, strings.TrimSpace(string(respBody)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return outbox.Permanent(statusErr)
		}
		return statusErr
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Ping checks connectivity with GET <BaseURL>/ping
func (c *Client) Ping(ctx context.Context) (err error) {
	defer func() { prometheus.RecordIntegrationCall("n8n", "ping", err) }()

	if !c.Enabled() {
		return fmt.Errorf("n8n webhook URL is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/ping", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("n8n ping returned %d", resp.StatusCode)
	}
	return nil
}

package invoiceninja

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Ealanisln/alanis-backend/prometheus"
)

// DefaultCountryID is the Invoice Ninja id for the United States
const DefaultCountryID = "840"

// ClientRecord is the Invoice Ninja client resource
type ClientRecord struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	VATNumber    string `json:"vat_number,omitempty"`
	Address1     string `json:"address1,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	CountryID    string `json:"country_id,omitempty"`
	CustomValue1 string `json:"custom_value1,omitempty"`
	CustomValue2 string `json:"custom_value2,omitempty"`
}

// LineItem is one invoice line
type LineItem struct {
	ProductKey string  `json:"product_key"`
	Notes      string  `json:"notes"`
	Quantity   float64 `json:"quantity"`
	Cost       float64 `json:"cost"`
}

// InvoiceRequest is the body of an invoice creation
type InvoiceRequest struct {
	ClientID     string     `json:"client_id"`
	LineItems    []LineItem `json:"line_items"`
	CustomValue1 string     `json:"custom_value1,omitempty"`
	CustomValue2 string     `json:"custom_value2,omitempty"`
}

// Invoice is the subset of the created invoice we read back
type Invoice struct {
	ID       string  `json:"id"`
	Number   string  `json:"number,omitempty"`
	ClientID string  `json:"client_id,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	Balance  float64 `json:"balance,omitempty"`
	StatusID string  `json:"status_id,omitempty"`
}

// ErrorResponse represents an Invoice Ninja error body
type ErrorResponse struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// APIError is returned for non-2xx answers
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("invoice ninja returned %d: %s", e.StatusCode, e.Message)
}

// Client represents a bearer-authenticated Invoice Ninja REST client
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Invoice Ninja client instance
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether URL and API key are configured
func (c *Client) Enabled() bool {
	return c != nil && c.BaseURL != "" && c.APIKey != ""
}

// UpsertClient looks the client up by custom_value1 and updates it when
// found, otherwise creates it.
func (c *Client) UpsertClient(ctx context.Context, record ClientRecord) (result *ClientRecord, err error) {
	defer func() { prometheus.RecordIntegrationCall("invoice_ninja", "upsert_client", err) }()

	query := url.Values{}
	query.Set("custom_value1", record.CustomValue1)

	var existing []ClientRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/clients?"+query.Encode(), nil, &existing); err != nil {
		return nil, fmt.Errorf("search client: %w", err)
	}

	var saved ClientRecord
	if len(existing) > 0 && existing[0].ID != "" {
		if err := c.do(ctx, http.MethodPut, "/api/v1/clients/"+url.PathEscape(existing[0].ID), record, &saved); err != nil {
			return nil, fmt.Errorf("update client: %w", err)
		}
	} else {
		if err := c.do(ctx, http.MethodPost, "/api/v1/clients", record, &saved); err != nil {
			return nil, fmt.Errorf("create client: %w", err)
		}
	}
	return &saved, nil
}

// CreateInvoice creates an invoice
func (c *Client) CreateInvoice(ctx context.Context, invoice InvoiceRequest) (result *Invoice, err error) {
	defer func() { prometheus.RecordIntegrationCall("invoice_ninja", "create_invoice", err) }()

	var created Invoice
	if err := c.do(ctx, http.MethodPost, "/api/v1/invoices", invoice, &created); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return &created, nil
}

// Ping checks connectivity with GET /api/v1/ping
func (c *Client) Ping(ctx context.Context) (err error) {
	defer func() { prometheus.RecordIntegrationCall("invoice_ninja", "ping", err) }()

	if !c.Enabled() {
		return fmt.Errorf("invoice ninja is not configured")
	}
	return c.do(ctx, http.MethodGet, "/api/v1/ping", nil, nil)
}

// do sends a request and decodes the {"data": ...} envelope into out
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err != nil || errorResp.Message == "" {
			return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errorResp.Message}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}

	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

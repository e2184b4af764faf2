package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// LedgerEntry is the accounting system's record of an invoice or payment line
type LedgerEntry struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Status string `json:"status"`
}

// LineItem is one invoice line pushed to the accounting ledger
type LineItem struct {
	Description string `json:"description"`
	AmountCents int64  `json:"amount"`
	Quantity    int    `json:"quantity"`
}

// PaymentLine records a collected amount against a synced ledger entry
type PaymentLine struct {
	AmountCents int64     `json:"amount"`
	PaidAt      time.Time `json:"paid_at"`
	Reference   string    `json:"reference"`
}

// Error is a typed accounting failure carrying the upstream status code
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("accounting: status %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether a later sync pass can succeed. Contact
// conflicts and throttling clear up on their own; 5xx is upstream trouble.
// Other 4xx means the record itself is bad.
func (e *Error) Retryable() bool {
	return e.StatusCode == http.StatusConflict ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// Client is the external accounting-ledger contract
type Client interface {
	CreateLedgerEntry(ctx context.Context, contactRef, reference string, items []LineItem) (*LedgerEntry, error)
	CreatePaymentRecord(ctx context.Context, externalInvoiceID string, line PaymentLine) (*LedgerEntry, error)
}

// HTTPClient implements Client over the accounting system's JSON API
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout:   20 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *HTTPClient) CreateLedgerEntry(ctx context.Context, contactRef, reference string, items []LineItem) (*LedgerEntry, error) {
	payload := struct {
		Contact   string     `json:"contact"`
		Reference string     `json:"reference"`
		LineItems []LineItem `json:"line_items"`
	}{Contact: contactRef, Reference: reference, LineItems: items}

	var entry LedgerEntry
	if err := c.post(ctx, "/api/ledger-entries", payload, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *HTTPClient) CreatePaymentRecord(ctx context.Context, externalInvoiceID string, line PaymentLine) (*LedgerEntry, error) {
	path := fmt.Sprintf("/api/ledger-entries/%s/payments", externalInvoiceID)

	var entry LedgerEntry
	if err := c.post(ctx, path, line, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode accounting request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build accounting request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("accounting request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read accounting response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode accounting response: %w", err)
	}
	return nil
}

package gateway

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

// Client talks to the payment gateway over plain JSON. Charges go to POST
// /v1/charges with an Idempotency-Key header; GET /v1/charges/by-key/{key}
// answers recovery lookups.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type chargeRequestBody struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	PaymentMethod string            `json:"payment_method"`
	Customer      string            `json:"customer"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type chargeResponseBody struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	body, err := json.Marshal(chargeRequestBody{
		Amount:        req.AmountCents,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethodRef,
		Customer:      req.CustomerRef,
		Description:   req.Description,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("gateway error: status %d: %s", resp.StatusCode, raw)
	}

	var parsed chargeResponseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	// Declines come back as a charge object with a failed status. A 4xx
	// without one means the request itself was rejected.
	if resp.StatusCode >= 400 && parsed.Status == "" {
		return nil, fmt.Errorf("gateway rejected charge: status %d: %s", resp.StatusCode, raw)
	}

	return &ChargeResult{
		Status:         parsed.Status,
		TransactionRef: parsed.ID,
		FailureReason:  parsed.FailureReason,
		Raw:            raw,
	}, nil
}

func (c *Client) LookupCharge(ctx context.Context, idempotencyKey string) (*ChargeResult, error) {
	url := fmt.Sprintf("%s/v1/charges/by-key/%s", c.baseURL, idempotencyKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrChargeNotFound
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway error: status %d: %s", resp.StatusCode, raw)
	}

	var parsed chargeResponseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}

	return &ChargeResult{
		Status:         parsed.Status,
		TransactionRef: parsed.ID,
		FailureReason:  parsed.FailureReason,
		Raw:            raw,
	}, nil
}

// DefaultMethod implements MethodResolver against the gateway's stored
// customer vault
func (c *Client) DefaultMethod(ctx context.Context, userID uint) (string, error) {
	url := fmt.Sprintf("%s/v1/customers/user-%d/default-method", c.baseURL, userID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build method request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gateway method lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNoSavedMethod
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("gateway error: status %d: %s", resp.StatusCode, body)
	}

	var parsed struct {
		PaymentMethod string `json:"payment_method"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if parsed.PaymentMethod == "" {
		return "", ErrNoSavedMethod
	}
	return parsed.PaymentMethod, nil
}

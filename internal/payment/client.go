package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client talks to the external payment provider's HTTP API. The core treats
// the provider as an opaque capability: intents in, webhook events back.
type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	httpClient    *http.Client
}

// NewClient creates a provider API client.
func NewClient(baseURL, apiKey, webhookSecret string) *Client {
	return &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Intent is a provider-side payment intent awaiting confirmation.
type Intent struct {
	ProviderRef  string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type intentRequest struct {
	Amount   string            `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CreateIntent registers a payment intent for the given amount and returns
// the provider's correlation reference plus the client secret the frontend
// needs to finish the card flow.
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error) {
	var intent Intent
	err := c.post(ctx, "/v1/intents", intentRequest{
		Amount:   amount.String(),
		Currency: currency,
		Metadata: metadata,
	}, &intent)
	if err != nil {
		return nil, err
	}
	if intent.ProviderRef == "" {
		return nil, fmt.Errorf("provider returned intent without id")
	}
	return &intent, nil
}

type refundRequest struct {
	PaymentIntent string `json:"payment_intent"`
	Amount        string `json:"amount"`
}

type refundResponse struct {
	ID string `json:"id"`
}

// Refund asks the provider to return amount against a settled intent and
// returns the provider-side refund reference.
func (c *Client) Refund(ctx context.Context, providerRef string, amount decimal.Decimal) (string, error) {
	var resp refundResponse
	err := c.post(ctx, "/v1/refunds", refundRequest{
		PaymentIntent: providerRef,
		Amount:        amount.String(),
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	// Provider deduplicates retried requests by this key.
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider %s: status %d: %s", path, resp.StatusCode, truncate(raw, 200))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("provider %s: decode response: %w", path, err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

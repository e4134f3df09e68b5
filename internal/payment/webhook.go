package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Event types the core reacts to. Anything else in the provider's schema is
// ignored.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
)

var ErrBadSignature = errors.New("invalid webhook signature")

// Event is the minimal shape the core depends on from provider callbacks.
type Event struct {
	Type            string `json:"type"`
	ObjectReference string `json:"object_reference"`
}

// VerifySignature checks the hex-encoded HMAC-SHA256 of the raw payload.
func VerifySignature(payload []byte, signature, secret string) error {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// ParseWebhook verifies the callback signature and decodes the event.
func (c *Client) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if err := VerifySignature(payload, signature, c.webhookSecret); err != nil {
		return nil, err
	}

	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if ev.Type == "" || ev.ObjectReference == "" {
		return nil, fmt.Errorf("webhook missing type or object_reference")
	}
	return &ev, nil
}

// Sign produces the signature the provider would attach to payload. Used by
// tests and local tooling.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Package gateway is the thin adapter to the external payment provider:
// creating payment intents and verifying the provider's asynchronous
// webhook callbacks. The core only ever sees this interface; no provider
// SDK types leak out of it.
package gateway

import (
	"errors"
	"time"
)

var (
	// ErrGatewayUnavailable covers network failures and provider 5xx
	// responses. The customer cannot complete payment, so callers
	// compensate (release inventory, cancel the order) instead of retrying.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	// ErrInvalidRequest covers provider 4xx responses to intent creation.
	ErrInvalidRequest = errors.New("payment gateway rejected the request")

	// ErrSignatureInvalid means a callback failed signature verification.
	// Such payloads never reach business logic.
	ErrSignatureInvalid = errors.New("webhook signature invalid")
)

// Outcome is the payment result carried by a callback.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Intent is the provider's handle for one attempted charge. The client
// secret is handed to the buyer's client to confirm payment out-of-band.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// PaymentEvent is a verified, parsed webhook callback.
type PaymentEvent struct {
	EventID    string
	IntentID   string
	Outcome    Outcome
	OccurredAt time.Time
}

// PaymentGateway is the contract the order core requires from a provider.
type PaymentGateway interface {
	// CreateIntent registers a charge attempt for amount (minor units) in
	// the given currency, correlated to orderID.
	CreateIntent(orderID string, amount int64, currency string) (*Intent, error)

	// VerifyCallback checks the signature header against the raw payload
	// and parses the event. Returns ErrSignatureInvalid on any mismatch.
	VerifyCallback(payload []byte, signatureHeader string) (*PaymentEvent, error)
}

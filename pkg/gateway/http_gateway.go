package gateway

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPGateway talks to a provider with a Stripe-style surface: bearer-token
// REST calls for intents, HMAC-SHA256 signed webhooks with a
// "t=<unix>,v1=<hex>" signature header.
type HTTPGateway struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	client        *http.Client
}

// Config holds the provider credentials, configured out of band.
type Config struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
}

// NewHTTPGateway creates a gateway client. The HTTP timeout is generous
// because intent creation is the one slow external call in the checkout
// path, but it is never made while a database transaction is open.
func NewHTTPGateway(cfg Config) *HTTPGateway {
	return &HTTPGateway{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

type intentRequest struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CreateIntent registers a charge attempt with the provider.
func (g *HTTPGateway) CreateIntent(orderID string, amount int64, currency string) (*Intent, error) {
	body, err := json.Marshal(intentRequest{OrderID: orderID, Amount: amount, Currency: currency})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, g.baseURL+"/v1/intents", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build intent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.secretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: provider returned %d", ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: provider returned %d", ErrInvalidRequest, resp.StatusCode)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("%w: undecodable intent response: %v", ErrGatewayUnavailable, err)
	}
	if intent.ID == "" {
		return nil, fmt.Errorf("%w: intent response missing id", ErrGatewayUnavailable)
	}
	return &intent, nil
}

// callbackPayload is the wire shape of a provider webhook.
type callbackPayload struct {
	ID       string `json:"id"`
	IntentID string `json:"intent_id"`
	Outcome  string `json:"outcome"`
	Created  int64  `json:"created"` // unix seconds
}

// VerifyCallback checks the HMAC signature and parses the event. The signed
// message is "<t>.<payload>" so the timestamp cannot be swapped onto a
// different body.
func (g *HTTPGateway) VerifyCallback(payload []byte, signatureHeader string) (*PaymentEvent, error) {
	ts, sig, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return nil, err
	}

	expected := computeSignature(g.webhookSecret, ts, payload)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return nil, ErrSignatureInvalid
	}

	var cb callbackPayload
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("%w: undecodable payload", ErrSignatureInvalid)
	}
	if cb.ID == "" || cb.IntentID == "" {
		return nil, fmt.Errorf("%w: payload missing identifiers", ErrSignatureInvalid)
	}

	outcome := Outcome(cb.Outcome)
	if outcome != OutcomeSucceeded && outcome != OutcomeFailed {
		return nil, fmt.Errorf("%w: unknown outcome %q", ErrSignatureInvalid, cb.Outcome)
	}

	return &PaymentEvent{
		EventID:    cb.ID,
		IntentID:   cb.IntentID,
		Outcome:    outcome,
		OccurredAt: time.Unix(cb.Created, 0),
	}, nil
}

// SignPayload produces the signature header the provider would send for
// payload at time ts. Exported for tests and local callback simulation.
func SignPayload(webhookSecret string, ts time.Time, payload []byte) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + unix + ",v1=" + computeSignature(webhookSecret, unix, payload)
}

func parseSignatureHeader(header string) (ts, sig string, err error) {
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			sig = kv[1]
		}
	}
	if ts == "" || sig == "" {
		return "", "", fmt.Errorf("%w: malformed signature header", ErrSignatureInvalid)
	}
	return ts, sig, nil
}

func computeSignature(secret, ts string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

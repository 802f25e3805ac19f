package payments

import (
	"context"
	"net/http"
	"time"
)

// Transaction is the provider's authoritative view of one reference.
type Transaction struct {
	Reference        string
	Status           string
	AmountMinorUnits int64
	Currency         string
	PaidAt           *time.Time
	Message          string
	RawPayload       []byte
}

// Gateway fetches transaction status by reference using a server-held secret.
// Errors are always *GatewayError.
type Gateway interface {
	Name() string
	VerifyTransaction(ctx context.Context, reference string) (Transaction, error)
}

type WebhookEvent struct {
	EventID   string
	Type      string
	Reference string
	Status    string
}

type Provider interface {
	Gateway

	// Webhook: verify signature + parse event
	VerifyAndParseWebhook(headers http.Header, body []byte) (WebhookEvent, error)
}

package midtrans

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Toyin05/ecommerce/internal/modules/payments"
)

type notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
}

// Signature is sha512(order_id + status_code + gross_amount + server_key), hex encoded.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func (c *Client) VerifyAndParseWebhook(_ http.Header, body []byte) (payments.WebhookEvent, error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return payments.WebhookEvent{}, fmt.Errorf("decode midtrans notification: %w", err)
	}

	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, c.serverKey)
	if n.SignatureKey == "" || subtle.ConstantTimeCompare([]byte(want), []byte(n.SignatureKey)) != 1 {
		return payments.WebhookEvent{}, payments.ErrInvalidSignature
	}
	if n.TransactionID == "" {
		return payments.WebhookEvent{}, errors.New("midtrans notification without transaction_id")
	}

	return payments.WebhookEvent{
		EventID:   n.TransactionID + ":" + n.TransactionStatus,
		Type:      n.TransactionStatus,
		Reference: n.OrderID,
		Status:    MapStatus(n.TransactionStatus),
	}, nil
}

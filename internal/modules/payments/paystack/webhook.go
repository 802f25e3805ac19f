package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Toyin05/ecommerce/internal/modules/payments"
)

const SignatureHeader = "x-paystack-signature"

var errMissingEventID = errors.New("paystack event without data.id")

type webhookBody struct {
	Event string `json:"event"`
	Data  struct {
		ID        json.Number `json:"id"`
		Reference string      `json:"reference"`
		Status    string      `json:"status"`
	} `json:"data"`
}

// Sign returns the hex HMAC-SHA512 Paystack sends with each webhook.
func Sign(secretKey string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) VerifyAndParseWebhook(headers http.Header, body []byte) (payments.WebhookEvent, error) {
	got, err := hex.DecodeString(headers.Get(SignatureHeader))
	if err != nil || len(got) == 0 {
		return payments.WebhookEvent{}, payments.ErrInvalidSignature
	}
	want, _ := hex.DecodeString(Sign(c.secretKey, body))
	if !hmac.Equal(got, want) {
		return payments.WebhookEvent{}, payments.ErrInvalidSignature
	}

	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return payments.WebhookEvent{}, fmt.Errorf("decode paystack webhook: %w", err)
	}
	if wb.Data.ID == "" {
		return payments.WebhookEvent{}, errMissingEventID
	}
	if _, err := strconv.ParseInt(wb.Data.ID.String(), 10, 64); err != nil {
		return payments.WebhookEvent{}, fmt.Errorf("paystack webhook id: %w", err)
	}

	return payments.WebhookEvent{
		EventID:   wb.Event + ":" + wb.Data.ID.String(),
		Type:      wb.Event,
		Reference: wb.Data.Reference,
		Status:    wb.Data.Status,
	}, nil
}

// Package paystack verifies transactions against the Paystack REST API.
package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Toyin05/ecommerce/internal/modules/payments"
)

const (
	Name           = "paystack"
	DefaultBaseURL = "https://api.paystack.co"

	maxBodyBytes = 1 << 20
)

type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func New(baseURL, secretKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
	}
}

func (c *Client) Name() string { return Name }

type verifyResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type transactionData struct {
	ID              int64   `json:"id"`
	Reference       string  `json:"reference"`
	Status          string  `json:"status"`
	Amount          *int64  `json:"amount"`
	Currency        string  `json:"currency"`
	PaidAt          *string `json:"paid_at"`
	GatewayResponse string  `json:"gateway_response"`
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (payments.Transaction, error) {
	endpoint := c.baseURL + "/transaction/verify/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return payments.Transaction{}, payments.ProtocolError("build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return payments.Transaction{}, payments.UnavailableError("paystack request failed", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return payments.Transaction{}, payments.UnavailableError("read paystack response", err)
	}

	switch {
	case res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests:
		return payments.Transaction{}, payments.UnavailableError(fmt.Sprintf("paystack status %d", res.StatusCode), nil)
	case res.StatusCode == http.StatusBadRequest || res.StatusCode == http.StatusNotFound:
		return payments.Transaction{}, payments.RejectedError(providerMessage(body))
	case res.StatusCode != http.StatusOK:
		// 401/403 mean our secret key is wrong; nothing the caller can fix by retrying
		return payments.Transaction{}, payments.ProtocolError(fmt.Sprintf("paystack status %d", res.StatusCode), nil)
	}

	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return payments.Transaction{}, payments.ProtocolError("decode paystack response", err)
	}
	if !vr.Status {
		return payments.Transaction{}, payments.RejectedError(nonEmpty(vr.Message, "Transaction not found"))
	}
	return parseTransaction(vr.Data)
}

func parseTransaction(raw json.RawMessage) (payments.Transaction, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return payments.Transaction{}, payments.ProtocolError("paystack response missing data", nil)
	}
	var d transactionData
	if err := json.Unmarshal(raw, &d); err != nil {
		return payments.Transaction{}, payments.ProtocolError("decode paystack transaction", err)
	}
	if d.Status == "" || d.Amount == nil || d.Currency == "" {
		return payments.Transaction{}, payments.ProtocolError("paystack transaction incomplete", nil)
	}

	tx := payments.Transaction{
		Reference:        d.Reference,
		Status:           d.Status,
		AmountMinorUnits: *d.Amount,
		Currency:         strings.ToUpper(d.Currency),
		Message:          d.GatewayResponse,
		RawPayload:       raw,
	}
	if d.PaidAt != nil && *d.PaidAt != "" {
		t, err := time.Parse(time.RFC3339Nano, *d.PaidAt)
		if err != nil {
			return payments.Transaction{}, payments.ProtocolError("parse paid_at", err)
		}
		tx.PaidAt = &t
	}
	return tx, nil
}

func providerMessage(body []byte) string {
	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err == nil && vr.Message != "" {
		return vr.Message
	}
	return "Transaction not found"
}

func nonEmpty(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

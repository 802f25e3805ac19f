// Package midtrans verifies transactions through the Midtrans core API.
package midtrans

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"

	"github.com/Toyin05/ecommerce/internal/modules/payments"
)

const Name = "midtrans"

// Midtrans reports times in Western Indonesia Time.
var wib = time.FixedZone("WIB", 7*60*60)

type statusFunc func(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error)

type Client struct {
	serverKey string
	check     statusFunc
}

func New(serverKey, env string) *Client {
	var core coreapi.Client
	core.New(serverKey, environment(env))
	return &Client{serverKey: serverKey, check: core.CheckTransaction}
}

func environment(env string) midtrans.EnvironmentType {
	if strings.EqualFold(env, "production") {
		return midtrans.Production
	}
	return midtrans.Sandbox
}

func (c *Client) Name() string { return Name }

type checkResult struct {
	res *coreapi.TransactionStatusResponse
	err *midtrans.Error
}

// VerifyTransaction looks up order_id = reference. The SDK takes no context, so
// the call runs in a goroutine and ctx only bounds how long we wait for it.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (payments.Transaction, error) {
	done := make(chan checkResult, 1)
	go func() {
		res, err := c.check(reference)
		done <- checkResult{res: res, err: err}
	}()

	var cr checkResult
	select {
	case <-ctx.Done():
		return payments.Transaction{}, payments.UnavailableError("midtrans request timed out", ctx.Err())
	case cr = <-done:
	}

	if cr.err != nil {
		return payments.Transaction{}, classifyError(cr.err)
	}
	if cr.res == nil {
		return payments.Transaction{}, payments.ProtocolError("midtrans returned no status", nil)
	}
	return toTransaction(reference, cr.res)
}

func classifyError(e *midtrans.Error) error {
	switch {
	case e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests:
		return payments.UnavailableError("midtrans request failed", e)
	case e.StatusCode == http.StatusNotFound:
		return payments.RejectedError("Transaction not found")
	default:
		return payments.ProtocolError(fmt.Sprintf("midtrans status %d", e.StatusCode), e)
	}
}

func toTransaction(reference string, res *coreapi.TransactionStatusResponse) (payments.Transaction, error) {
	// the status API can answer HTTP 200 with an error status_code in the body
	if res.StatusCode == "404" {
		return payments.Transaction{}, payments.RejectedError(nonEmpty(res.StatusMessage, "Transaction not found"))
	}
	if res.TransactionStatus == "" || res.GrossAmount == "" {
		return payments.Transaction{}, payments.ProtocolError("midtrans status incomplete", nil)
	}

	amount, err := MinorUnits(res.GrossAmount)
	if err != nil {
		return payments.Transaction{}, payments.ProtocolError("parse gross_amount", err)
	}
	currency := strings.ToUpper(res.Currency)
	if currency == "" {
		currency = "IDR"
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return payments.Transaction{}, payments.ProtocolError("encode midtrans payload", err)
	}

	tx := payments.Transaction{
		Reference:        res.OrderID,
		Status:           MapStatus(res.TransactionStatus),
		AmountMinorUnits: amount,
		Currency:         currency,
		Message:          res.StatusMessage,
		RawPayload:       raw,
	}
	if tx.Reference == "" {
		tx.Reference = reference
	}
	if res.SettlementTime != "" && tx.Status == payments.StatusSuccess {
		t, err := time.ParseInLocation("2006-01-02 15:04:05", res.SettlementTime, wib)
		if err != nil {
			return payments.Transaction{}, payments.ProtocolError("parse settlement_time", err)
		}
		tx.PaidAt = &t
	}
	return tx, nil
}

// MapStatus folds Midtrans transaction statuses into success, pending and failed.
func MapStatus(s string) string {
	switch strings.ToLower(s) {
	case "settlement", "capture":
		return payments.StatusSuccess
	case "pending":
		return payments.StatusPending
	default:
		return payments.StatusFailed
	}
}

// MinorUnits converts a decimal amount such as "150000.00" to hundredths without floats.
func MinorUnits(amount string) (int64, error) {
	amount = strings.TrimSpace(amount)
	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" || strings.HasPrefix(whole, "-") || strings.HasPrefix(whole, "+") {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	if len(frac) > 2 {
		if strings.Trim(frac[2:], "0") != "" {
			return 0, fmt.Errorf("amount %q has sub-minor precision", amount)
		}
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	if w > (1<<63-1-f)/100 {
		return 0, fmt.Errorf("amount %q overflows", amount)
	}
	return w*100 + f, nil
}

func nonEmpty(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

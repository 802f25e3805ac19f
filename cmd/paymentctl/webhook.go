package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Toyin05/ecommerce/internal/modules/payments/paystack"
)

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		PaidAt    string `json:"paid_at"`
	} `json:"data"`
}

// webhook sends a signed Paystack-style event to a running server.
func newWebhookCmd() *cobra.Command {
	var (
		url       string
		secret    string
		event     string
		reference string
		status    string
		amount    int64
		currency  string
		id        int64
	)
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Send a signed test webhook to the service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or PAYSTACK_SECRET_KEY required")
			}
			if reference == "" {
				reference = "PSK_" + randomHex(6)
			}
			if id == 0 {
				id = time.Now().UnixNano() / int64(time.Millisecond)
			}

			var ev paystackEvent
			ev.Event = event
			ev.Data.ID = id
			ev.Data.Reference = reference
			ev.Data.Status = status
			ev.Data.Amount = amount
			ev.Data.Currency = currency
			ev.Data.PaidAt = time.Now().UTC().Format(time.RFC3339)

			body, err := json.Marshal(ev)
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(paystack.SignatureHeader, paystack.Sign(secret, body))

			res, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
			if err != nil {
				return err
			}
			defer res.Body.Close()
			respBody, _ := io.ReadAll(io.LimitReader(res.Body, 4096))

			cmd.Printf("event_id=%s:%s status=%d body=%s\n", event, strconv.FormatInt(id, 10), res.StatusCode, respBody)
			if res.StatusCode >= 300 {
				return fmt.Errorf("webhook rejected with status %d", res.StatusCode)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&url, "url", "http://localhost:8080/webhooks/paystack", "webhook URL")
	f.StringVar(&secret, "secret", envDefault("PAYSTACK_SECRET_KEY"), "Paystack secret key used to sign")
	f.StringVar(&event, "event", "charge.success", "event name")
	f.StringVar(&reference, "reference", "", "transaction reference (random if empty)")
	f.StringVar(&status, "status", "success", "transaction status")
	f.Int64Var(&amount, "amount", 150000, "amount in minor units")
	f.StringVar(&currency, "currency", "NGN", "currency code")
	f.Int64Var(&id, "id", 0, "event data.id (derived from the clock if 0)")
	return cmd
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"path"
	"time"

	"github.com/Toyin05/ecommerce/internal/events"
	"github.com/Toyin05/ecommerce/internal/storage"
)

// RecordHook runs once after a record is first inserted. Errors are logged only.
type RecordHook interface {
	Name() string
	AfterRecord(ctx context.Context, rec PaymentRecord) error
}

// ReceiptArchive writes {payment, gatewayPayload} documents to object storage.
type ReceiptArchive struct {
	store storage.Storage
}

func NewReceiptArchive(store storage.Storage) *ReceiptArchive {
	return &ReceiptArchive{store: store}
}

func (a *ReceiptArchive) Name() string { return "receipt_archive" }

type receiptDoc struct {
	Payment        receiptPayment  `json:"payment"`
	GatewayPayload json.RawMessage `json:"gatewayPayload"`
}

type receiptPayment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Provider  string    `json:"provider"`
	PaidAt    time.Time `json:"paidAt"`
	CreatedAt time.Time `json:"createdAt"`
}

func ReceiptKey(rec PaymentRecord) string {
	return path.Join("receipts", rec.Provider, url.PathEscape(rec.Reference)+".json")
}

func (a *ReceiptArchive) AfterRecord(ctx context.Context, rec PaymentRecord) error {
	payload := json.RawMessage(rec.GatewayPayload)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	body, err := json.Marshal(receiptDoc{
		Payment: receiptPayment{
			ID:        rec.ID,
			UserID:    rec.UserID,
			Reference: rec.Reference,
			Amount:    rec.AmountMinorUnits,
			Currency:  rec.Currency,
			Status:    rec.Status,
			Provider:  rec.Provider,
			PaidAt:    rec.PaidAt,
			CreatedAt: rec.CreatedAt,
		},
		GatewayPayload: payload,
	})
	if err != nil {
		return err
	}
	_, err = a.store.Put(ctx, bytes.NewReader(body), storage.PutInput{
		Key:         ReceiptKey(rec),
		ContentType: "application/json",
		Size:        int64(len(body)),
	})
	return err
}

// EventHook announces new records on the event bus.
type EventHook struct {
	pub events.Publisher
	now func() time.Time
}

func NewEventHook(pub events.Publisher) *EventHook {
	return &EventHook{pub: pub, now: time.Now}
}

func (h *EventHook) Name() string { return "event_publisher" }

func (h *EventHook) AfterRecord(ctx context.Context, rec PaymentRecord) error {
	return h.pub.PublishPaymentVerified(ctx, events.PaymentVerified{
		PaymentID:  rec.ID,
		UserID:     rec.UserID,
		Reference:  rec.Reference,
		Amount:     rec.AmountMinorUnits,
		Currency:   rec.Currency,
		Provider:   rec.Provider,
		PaidAt:     rec.PaidAt,
		OccurredAt: h.now().UTC(),
	})
}

package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const errPaymentNotRecorded = "payment not recorded"

// ProviderEvent is a received webhook delivery, stored once per (provider, event_id).
type ProviderEvent struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	Provider    string         `gorm:"type:varchar(32);not null;uniqueIndex:ux_provider_events_provider_event,priority:1"`
	EventID     string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_provider_events_provider_event,priority:2"`
	EventType   string         `gorm:"type:varchar(64);not null"`
	Reference   string         `gorm:"type:varchar(128);not null;index:ix_provider_events_reference"`
	PayloadJSON datatypes.JSON `gorm:"not null"`

	ReceivedAt   time.Time `gorm:"not null"`
	ProcessedAt  *time.Time
	ProcessError *string `gorm:"type:varchar(255)"`
}

func (ProviderEvent) TableName() string { return "provider_events" }

// WebhookService stores provider notifications and reconciles them against the ledger.
// It never creates payment records.
type WebhookService struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

func NewWebhookService(db *gorm.DB) *WebhookService {
	return &WebhookService{db: db, logger: slog.Default(), now: time.Now}
}

func (s *WebhookService) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Handle persists ev and marks it processed when the ledger already holds its
// reference. Duplicate deliveries return nil so the provider stops retrying.
func (s *WebhookService) Handle(ctx context.Context, providerName string, ev WebhookEvent, rawBody []byte) error {
	if ev.EventID == "" {
		return errors.New("missing event id")
	}
	payload := rawBody
	if !json.Valid(payload) {
		payload = []byte("{}")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now().UTC()

		pe := ProviderEvent{
			ID:          uuid.NewString(),
			Provider:    providerName,
			EventID:     ev.EventID,
			EventType:   ev.Type,
			Reference:   ev.Reference,
			PayloadJSON: datatypes.JSON(payload),
			ReceivedAt:  now,
		}

		// dedupe: unique(provider,event_id); a failed INSERT would abort a postgres tx, so skip instead
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&pe)
		if res.Error != nil {
			s.logger.ErrorContext(ctx, "failed to persist provider event", "provider", providerName, "event_id", ev.EventID, "err", res.Error)
			return res.Error
		}
		if res.RowsAffected == 0 {
			s.logger.InfoContext(ctx, "webhook event deduplicated", "provider", providerName, "event_id", ev.EventID, "type", ev.Type)
			return nil
		}

		// only successful charges need a matching ledger row
		processed := true
		if ev.Status == StatusSuccess {
			recorded, err := s.isRecorded(ctx, tx, ev.Reference)
			if err != nil {
				return err
			}
			processed = recorded
		}

		updates := map[string]any{"processed_at": &now, "process_error": nil}
		if !processed {
			msg := errPaymentNotRecorded
			updates = map[string]any{"process_error": &msg}
		}
		if err := tx.Model(&ProviderEvent{}).Where("id = ?", pe.ID).Updates(updates).Error; err != nil {
			return err
		}

		if processed {
			s.logger.InfoContext(ctx, "webhook event processed", "provider", providerName, "event_id", ev.EventID, "type", ev.Type, "reference", ev.Reference)
		} else {
			s.logger.WarnContext(ctx, "webhook event awaiting reconciliation", "provider", providerName, "event_id", ev.EventID, "reference", ev.Reference, "error", errPaymentNotRecorded)
		}
		return nil
	})
}

func (s *WebhookService) isRecorded(ctx context.Context, tx *gorm.DB, reference string) (bool, error) {
	if reference == "" {
		return false, nil
	}
	var cnt int64
	if err := tx.WithContext(ctx).Model(&PaymentRecord{}).Where("reference = ?", reference).Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

// Name and AfterRecord let the service run as a RecordHook: events that arrived
// before the payment was verified are closed once the record exists.
func (s *WebhookService) Name() string { return "webhook_reconciler" }

func (s *WebhookService) AfterRecord(ctx context.Context, rec PaymentRecord) error {
	now := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&ProviderEvent{}).
		Where("provider = ? AND reference = ? AND processed_at IS NULL", rec.Provider, rec.Reference).
		Updates(map[string]any{"processed_at": &now, "process_error": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		s.logger.InfoContext(ctx, "webhook events reconciled", "reference", rec.Reference, "events", res.RowsAffected)
	}
	return nil
}

// Package events publishes payment domain events to the configured bus.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Toyin05/ecommerce/internal/config"
)

const TypePaymentVerified = "payment.verified"

type PaymentVerified struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	PaymentID  string    `json:"paymentId"`
	UserID     string    `json:"userId"`
	Reference  string    `json:"reference"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	Provider   string    `json:"provider"`
	PaidAt     time.Time `json:"paidAt"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	PublishPaymentVerified(ctx context.Context, ev PaymentVerified) error
	Close() error
}

// normalize fills the envelope fields every driver relies on.
func normalize(ev PaymentVerified) PaymentVerified {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Type == "" {
		ev.Type = TypePaymentVerified
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	return ev
}

func FromConfig(cfg config.EventsConfig, logger *slog.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "", "log":
		return NewLogPublisher(logger), nil
	case "amqp":
		return DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return nil, fmt.Errorf("unknown EVENTS_DRIVER: %s", cfg.Driver)
	}
}

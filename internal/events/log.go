package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the structured log. Used when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishPaymentVerified(ctx context.Context, ev PaymentVerified) error {
	ev = normalize(ev)
	p.logger.InfoContext(ctx, "event published",
		"event_id", ev.ID, "type", ev.Type, "payment_id", ev.PaymentID, "reference", ev.Reference)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

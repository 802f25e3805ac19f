package payments

import (
	"context"
	"testing"
)

func findEvent(t *testing.T, s *WebhookService, eventID string) ProviderEvent {
	t.Helper()
	var pe ProviderEvent
	if err := s.db.First(&pe, "event_id = ?", eventID).Error; err != nil {
		t.Fatalf("load event %s: %v", eventID, err)
	}
	return pe
}

func TestWebhookServiceMarksRecordedPaymentProcessed(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	if _, _, err := NewGormLedger(db).InsertIfAbsent(ctx, sampleRecord("user-1", "PSK_001")); err != nil {
		t.Fatal(err)
	}
	s := NewWebhookService(db)

	ev := WebhookEvent{EventID: "charge.success:1", Type: "charge.success", Reference: "PSK_001", Status: StatusSuccess}
	if err := s.Handle(ctx, "paystack", ev, []byte(`{"event":"charge.success"}`)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	pe := findEvent(t, s, "charge.success:1")
	if pe.ProcessedAt == nil || pe.ProcessError != nil {
		t.Fatalf("event = %+v", pe)
	}
}

func TestWebhookServiceLeavesUnrecordedPaymentForReconciliation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewWebhookService(db)

	ev := WebhookEvent{EventID: "charge.success:2", Type: "charge.success", Reference: "PSK_UNSEEN", Status: StatusSuccess}
	if err := s.Handle(ctx, "paystack", ev, []byte(`{}`)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	pe := findEvent(t, s, "charge.success:2")
	if pe.ProcessedAt != nil || pe.ProcessError == nil || *pe.ProcessError != "payment not recorded" {
		t.Fatalf("event = %+v", pe)
	}

	var n int64
	db.Model(&PaymentRecord{}).Count(&n)
	if n != 0 {
		t.Fatal("webhook must not create payment records")
	}
}

func TestWebhookServiceDeduplicates(t *testing.T) {
	ctx := context.Background()
	s := NewWebhookService(newTestDB(t))

	ev := WebhookEvent{EventID: "charge.failed:3", Type: "charge.failed", Reference: "PSK_003", Status: StatusFailed}
	for i := 0; i < 3; i++ {
		if err := s.Handle(ctx, "paystack", ev, []byte(`{}`)); err != nil {
			t.Fatalf("delivery %d: %v", i, err)
		}
	}

	var n int64
	s.db.Model(&ProviderEvent{}).Count(&n)
	if n != 1 {
		t.Fatalf("stored %d events, want 1", n)
	}
	if pe := findEvent(t, s, "charge.failed:3"); pe.ProcessedAt == nil {
		t.Fatalf("event = %+v", pe)
	}

	// same event id from another provider is a different event
	if err := s.Handle(ctx, "midtrans", ev, []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	s.db.Model(&ProviderEvent{}).Count(&n)
	if n != 2 {
		t.Fatalf("stored %d events, want 2", n)
	}
}

func TestWebhookServiceRequiresEventID(t *testing.T) {
	s := NewWebhookService(newTestDB(t))
	if err := s.Handle(context.Background(), "paystack", WebhookEvent{Type: "charge.success"}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestWebhookServiceReconcilesAfterRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	s := NewWebhookService(db)

	ev := WebhookEvent{EventID: "charge.success:4", Type: "charge.success", Reference: "PSK_004", Status: StatusSuccess}
	if err := s.Handle(ctx, "paystack", ev, []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if pe := findEvent(t, s, "charge.success:4"); pe.ProcessError == nil {
		t.Fatalf("event = %+v", pe)
	}

	rec, _, err := NewGormLedger(db).InsertIfAbsent(ctx, sampleRecord("user-1", "PSK_004"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.AfterRecord(ctx, rec); err != nil {
		t.Fatalf("AfterRecord: %v", err)
	}

	pe := findEvent(t, s, "charge.success:4")
	if pe.ProcessedAt == nil || pe.ProcessError != nil {
		t.Fatalf("event = %+v", pe)
	}
}

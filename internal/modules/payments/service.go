package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Toyin05/ecommerce/internal/modules/auth"
	"github.com/Toyin05/ecommerce/internal/shared/apperr"
)

const maxReferenceLen = 128

// Outcome says how a verification that returned no error ended.
type Outcome string

const (
	OutcomeAccepted        Outcome = "accepted"
	OutcomeAlreadyRecorded Outcome = "already_recorded"
	OutcomeRejected        Outcome = "rejected"
	OutcomeMismatch        Outcome = "mismatch"
	OutcomeReferenceTaken  Outcome = "reference_taken"
)

// Result is returned for every handled outcome, including declined payments.
// Record is nil unless a ledger record backs the answer.
type Result struct {
	Success bool
	Outcome Outcome
	Reason  string
	Record  *PaymentRecord
}

type VerifyInput struct {
	Token            string
	Reference        string
	ExpectedAmount   *int64 // minor units; nil skips the amount check
	ExpectedCurrency string
}

type Service struct {
	auth    auth.Authenticator
	gateway Gateway
	ledger  Ledger
	hooks   []RecordHook
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(a auth.Authenticator, g Gateway, l Ledger, hooks ...RecordHook) *Service {
	return &Service{auth: a, gateway: g, ledger: l, hooks: hooks, logger: slog.Default(), now: time.Now}
}

func (s *Service) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Verify resolves the caller, then either returns the caller's stored record for the
// reference or asks the gateway, validates, and records the payment once.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (Result, error) {
	userID, err := s.authenticate(ctx, in.Token)
	if err != nil {
		return Result{}, err
	}

	ref := strings.TrimSpace(in.Reference)
	if ref == "" {
		return Result{}, apperr.InvalidErr("Payment reference is required", map[string]string{"reference": "required"})
	}
	if len(ref) > maxReferenceLen {
		return Result{}, apperr.InvalidErr("Payment reference is too long", map[string]string{"reference": "max"})
	}
	currency := strings.ToUpper(strings.TrimSpace(in.ExpectedCurrency))
	if len(currency) != 3 {
		return Result{}, apperr.InvalidErr("Currency must be a 3-letter code", map[string]string{"currency": "len"})
	}
	if in.ExpectedAmount != nil && *in.ExpectedAmount <= 0 {
		return Result{}, apperr.InvalidErr("Expected amount must be positive", map[string]string{"expectedAmount": "gt"})
	}

	// fast path: already resolved for this user
	existing, err := s.ledger.FindByReferenceAndUser(ctx, ref, userID)
	if err != nil {
		return Result{}, apperr.InternalErr("Database error", fmt.Errorf("find payment: %w", err))
	}
	if existing != nil {
		return recordedResult(*existing, OutcomeAlreadyRecorded), nil
	}

	tx, err := s.gateway.VerifyTransaction(ctx, ref)
	if err != nil {
		return s.gatewayFailure(ctx, ref, err)
	}
	if tx.Reference != "" && tx.Reference != ref {
		return Result{}, apperr.BadGatewayErr("Payment verification failed",
			fmt.Errorf("gateway answered for reference %q, asked %q", tx.Reference, ref))
	}

	if tx.Status != StatusSuccess {
		return Result{Outcome: OutcomeRejected, Reason: "Payment " + tx.Status}, nil
	}
	if tx.Currency != currency {
		s.logMismatch(ctx, ref, userID, "currency", currency, tx.Currency)
		return Result{
			Outcome: OutcomeMismatch,
			Reason:  fmt.Sprintf("Invalid currency: expected %s, got %s", currency, tx.Currency),
		}, nil
	}
	if in.ExpectedAmount != nil && tx.AmountMinorUnits != *in.ExpectedAmount {
		s.logMismatch(ctx, ref, userID, "amount", *in.ExpectedAmount, tx.AmountMinorUnits)
		return Result{
			Outcome: OutcomeMismatch,
			Reason:  fmt.Sprintf("Amount mismatch: expected %d, got %d", *in.ExpectedAmount, tx.AmountMinorUnits),
		}, nil
	}

	paidAt := s.now().UTC()
	if tx.PaidAt != nil {
		paidAt = tx.PaidAt.UTC()
	}
	payload := tx.RawPayload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	stored, inserted, err := s.ledger.InsertIfAbsent(ctx, PaymentRecord{
		UserID:           userID,
		Reference:        ref,
		AmountMinorUnits: tx.AmountMinorUnits,
		Currency:         tx.Currency,
		Status:           tx.Status,
		Provider:         s.gateway.Name(),
		PaidAt:           paidAt,
		GatewayPayload:   payload,
	})
	if err != nil {
		return Result{}, apperr.InternalErr("Failed to save payment record", fmt.Errorf("insert payment: %w", err))
	}

	if !inserted {
		if stored.UserID != userID {
			s.logger.WarnContext(ctx, "payment reference owned by another user",
				"reference", ref, "user_id", userID)
			return Result{Outcome: OutcomeReferenceTaken, Reason: "Payment reference already used"}, nil
		}
		s.logger.InfoContext(ctx, "concurrent verification adopted stored record",
			"reference", ref, "payment_id", stored.ID)
		return recordedResult(stored, OutcomeAlreadyRecorded), nil
	}

	s.logger.InfoContext(ctx, "payment recorded",
		"reference", ref, "payment_id", stored.ID, "user_id", userID,
		"amount", stored.AmountMinorUnits, "currency", stored.Currency, "provider", stored.Provider)
	s.runHooks(ctx, stored)

	return recordedResult(stored, OutcomeAccepted), nil
}

// Get returns the caller's own record for reference.
func (s *Service) Get(ctx context.Context, userID, reference string) (PaymentRecord, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return PaymentRecord{}, apperr.InvalidErr("Payment reference is required", nil)
	}
	rec, err := s.ledger.FindByReferenceAndUser(ctx, ref, userID)
	if err != nil {
		return PaymentRecord{}, apperr.InternalErr("Database error", fmt.Errorf("find payment: %w", err))
	}
	if rec == nil {
		return PaymentRecord{}, apperr.NotFoundErr("Payment not found")
	}
	return *rec, nil
}

func (s *Service) authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", apperr.UnauthorizedErr("Authorization required")
	}
	userID, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrUnavailable) {
			return "", apperr.UnavailableErr("Authentication service unavailable", err)
		}
		return "", &apperr.AppError{Kind: apperr.Unauthorized, PublicMsg: "Invalid or expired token", Err: err}
	}
	return userID, nil
}

func (s *Service) gatewayFailure(ctx context.Context, ref string, err error) (Result, error) {
	ge, ok := AsGatewayError(err)
	if !ok {
		return Result{}, apperr.BadGatewayErr("Payment verification failed", err)
	}
	switch ge.Kind {
	case GatewayRejected:
		reason := ge.Message
		if reason == "" {
			reason = "Payment verification failed"
		}
		s.logger.InfoContext(ctx, "gateway rejected reference", "reference", ref, "reason", reason)
		return Result{Outcome: OutcomeRejected, Reason: reason}, nil
	case GatewayUnavailable:
		return Result{}, apperr.UnavailableErr("Payment gateway unavailable, please retry", err)
	default:
		return Result{}, apperr.BadGatewayErr("Payment verification failed", err)
	}
}

func (s *Service) logMismatch(ctx context.Context, ref, userID, field string, expected, got any) {
	s.logger.WarnContext(ctx, "payment validation mismatch",
		"reference", ref, "user_id", userID, "field", field,
		"expected", expected, "got", got, "provider", s.gateway.Name())
}

func (s *Service) runHooks(ctx context.Context, rec PaymentRecord) {
	for _, h := range s.hooks {
		if err := h.AfterRecord(ctx, rec); err != nil {
			s.logger.ErrorContext(ctx, "record hook failed",
				"hook", h.Name(), "reference", rec.Reference, "payment_id", rec.ID, "err", err)
		}
	}
}

func recordedResult(rec PaymentRecord, outcome Outcome) Result {
	r := Result{Success: rec.Succeeded(), Outcome: outcome, Record: &rec}
	if !r.Success {
		r.Reason = "Payment " + rec.Status
	}
	return r
}

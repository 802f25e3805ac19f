package payments

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Toyin05/ecommerce/internal/modules/auth"
	"github.com/Toyin05/ecommerce/internal/shared/apperr"
)

type fakeAuth struct {
	AuthenticateFn func(ctx context.Context, token string) (string, error)
}

func (f fakeAuth) Authenticate(ctx context.Context, token string) (string, error) {
	return f.AuthenticateFn(ctx, token)
}

// tokenAuth maps "token-<user>" to "<user>".
func tokenAuth() fakeAuth {
	return fakeAuth{AuthenticateFn: func(_ context.Context, token string) (string, error) {
		if user, ok := strings.CutPrefix(token, "token-"); ok {
			return user, nil
		}
		return "", auth.ErrUnauthorized
	}}
}

type fakeGateway struct {
	calls    atomic.Int32
	verifyFn func(ctx context.Context, reference string) (Transaction, error)
}

func (g *fakeGateway) Name() string { return "paystack" }

func (g *fakeGateway) VerifyTransaction(ctx context.Context, reference string) (Transaction, error) {
	g.calls.Add(1)
	return g.verifyFn(ctx, reference)
}

func successTx(ref string, amount int64) func(context.Context, string) (Transaction, error) {
	return func(context.Context, string) (Transaction, error) {
		paid := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		return Transaction{
			Reference:        ref,
			Status:           StatusSuccess,
			AmountMinorUnits: amount,
			Currency:         "NGN",
			PaidAt:           &paid,
			RawPayload:       []byte(`{"reference":"` + ref + `"}`),
		}, nil
	}
}

type recordingHook struct {
	mu   sync.Mutex
	seen []PaymentRecord
	err  error
}

func (h *recordingHook) Name() string { return "recording" }

func (h *recordingHook) AfterRecord(_ context.Context, rec PaymentRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, rec)
	return h.err
}

func (h *recordingHook) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

type harness struct {
	svc    *Service
	gw     *fakeGateway
	ledger *GormLedger
	hook   *recordingHook
	logs   *bytes.Buffer
}

func newHarness(t *testing.T, verify func(context.Context, string) (Transaction, error)) *harness {
	t.Helper()
	gw := &fakeGateway{verifyFn: verify}
	ledger := NewGormLedger(newTestDB(t))
	hook := &recordingHook{}
	svc := NewService(tokenAuth(), gw, ledger, hook)

	logs := &bytes.Buffer{}
	svc.SetLogger(slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	return &harness{svc: svc, gw: gw, ledger: ledger, hook: hook, logs: logs}
}

func (h *harness) count(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := h.ledger.db.Model(&PaymentRecord{}).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}

func amount(v int64) *int64 { return &v }

func TestVerifyScenarioPSK001(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, successTx("PSK_001", 150000))
	in := VerifyInput{Token: "token-alice", Reference: "PSK_001", ExpectedAmount: amount(150000), ExpectedCurrency: "NGN"}

	first, err := h.svc.Verify(ctx, in)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if !first.Success || first.Outcome != OutcomeAccepted || first.Record == nil {
		t.Fatalf("first = %+v", first)
	}
	if first.Record.AmountMinorUnits != 150000 || first.Record.Currency != "NGN" || first.Record.UserID != "alice" {
		t.Fatalf("record = %+v", first.Record)
	}

	second, err := h.svc.Verify(ctx, in)
	if err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if second.Outcome != OutcomeAlreadyRecorded || second.Record.ID != first.Record.ID || !second.Success {
		t.Fatalf("second = %+v", second)
	}
	if got := h.gw.calls.Load(); got != 1 {
		t.Fatalf("gateway calls = %d, want 1", got)
	}
	if h.count(t) != 1 {
		t.Fatal("expected exactly one record")
	}
	if h.hook.count() != 1 {
		t.Fatalf("hook ran %d times, want 1", h.hook.count())
	}
}

func TestVerifyTrimsReferenceAndNormalizesCurrency(t *testing.T) {
	h := newHarness(t, successTx("PSK_002", 500))
	res, err := h.svc.Verify(context.Background(), VerifyInput{Token: "token-alice", Reference: "  PSK_002 ", ExpectedCurrency: "ngn"})
	if err != nil || !res.Success {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if res.Record.Reference != "PSK_002" {
		t.Fatalf("reference = %q", res.Record.Reference)
	}
}

func TestVerifyAuthentication(t *testing.T) {
	h := newHarness(t, successTx("PSK_001", 150000))

	_, err := h.svc.Verify(context.Background(), VerifyInput{Reference: "PSK_001", ExpectedCurrency: "NGN"})
	if !apperr.IsKind(err, apperr.Unauthorized) {
		t.Fatalf("missing token: err = %v", err)
	}
	_, err = h.svc.Verify(context.Background(), VerifyInput{Token: "garbage", Reference: "PSK_001", ExpectedCurrency: "NGN"})
	if !apperr.IsKind(err, apperr.Unauthorized) {
		t.Fatalf("bad token: err = %v", err)
	}
	if h.gw.calls.Load() != 0 {
		t.Fatal("gateway called without identity")
	}

	h.svc.auth = fakeAuth{AuthenticateFn: func(context.Context, string) (string, error) {
		return "", auth.ErrUnavailable
	}}
	_, err = h.svc.Verify(context.Background(), VerifyInput{Token: "token-alice", Reference: "PSK_001", ExpectedCurrency: "NGN"})
	if !apperr.IsKind(err, apperr.Unavailable) {
		t.Fatalf("provider down: err = %v", err)
	}
}

func TestVerifyInvalidInput(t *testing.T) {
	h := newHarness(t, successTx("PSK_001", 150000))
	tests := map[string]VerifyInput{
		"blank reference": {Reference: "   ", ExpectedCurrency: "NGN"},
		"long reference":  {Reference: strings.Repeat("x", maxReferenceLen+1), ExpectedCurrency: "NGN"},
		"bad currency":    {Reference: "PSK_001", ExpectedCurrency: "NAIRA"},
		"zero amount":     {Reference: "PSK_001", ExpectedCurrency: "NGN", ExpectedAmount: amount(0)},
		"negative amount": {Reference: "PSK_001", ExpectedCurrency: "NGN", ExpectedAmount: amount(-100)},
	}
	for name, in := range tests {
		in.Token = "token-alice"
		if _, err := h.svc.Verify(context.Background(), in); !apperr.IsKind(err, apperr.Invalid) {
			t.Errorf("%s: err = %v, want invalid", name, err)
		}
	}
	if h.gw.calls.Load() != 0 {
		t.Fatal("gateway called for invalid input")
	}
}

func TestVerifyTamperedAmount(t *testing.T) {
	h := newHarness(t, successTx("PSK_003", 500000))
	res, err := h.svc.Verify(context.Background(), VerifyInput{
		Token: "token-alice", Reference: "PSK_003", ExpectedAmount: amount(400000), ExpectedCurrency: "NGN",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Outcome != OutcomeMismatch || res.Record != nil {
		t.Fatalf("res = %+v", res)
	}
	if res.Reason != "Amount mismatch: expected 400000, got 500000" {
		t.Fatalf("reason = %q", res.Reason)
	}
	if h.count(t) != 0 {
		t.Fatal("mismatch must not persist")
	}
	if !strings.Contains(h.logs.String(), `"level":"WARN"`) {
		t.Fatalf("mismatch not logged at warn: %s", h.logs.String())
	}
}

func TestVerifyCurrencyMismatch(t *testing.T) {
	h := newHarness(t, successTx("PSK_004", 1000))
	res, err := h.svc.Verify(context.Background(), VerifyInput{Token: "token-alice", Reference: "PSK_004", ExpectedCurrency: "USD"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Reason != "Invalid currency: expected USD, got NGN" {
		t.Fatalf("res = %+v", res)
	}
	if h.count(t) != 0 {
		t.Fatal("mismatch must not persist")
	}
}

func TestVerifyNonSuccessStatus(t *testing.T) {
	h := newHarness(t, func(context.Context, string) (Transaction, error) {
		return Transaction{Reference: "PSK_005", Status: StatusFailed, AmountMinorUnits: 1000, Currency: "NGN"}, nil
	})
	res, err := h.svc.Verify(context.Background(), VerifyInput{Token: "token-alice", Reference: "PSK_005", ExpectedCurrency: "NGN"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Outcome != OutcomeRejected || res.Reason != "Payment failed" {
		t.Fatalf("res = %+v", res)
	}
	if h.count(t) != 0 {
		t.Fatal("failed payment must not persist")
	}
}

func TestVerifyGatewayFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperr.Kind
		rejected bool
	}{
		{"timeout", UnavailableError("paystack request failed", context.DeadlineExceeded), apperr.Unavailable, false},
		{"protocol", ProtocolError("decode", errors.New("bad json")), apperr.BadGateway, false},
		{"untyped", errors.New("boom"), apperr.BadGateway, false},
		{"unknown reference", RejectedError("Transaction reference not found"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(context.Context, string) (Transaction, error) { return Transaction{}, tt.err })
			res, err := h.svc.Verify(context.Background(), VerifyInput{Token: "token-alice", Reference: "PSK_404", ExpectedCurrency: "NGN"})
			if tt.rejected {
				if err != nil || res.Success || res.Reason != "Transaction reference not found" {
					t.Fatalf("res=%+v err=%v", res, err)
				}
			} else if !apperr.IsKind(err, tt.wantKind) {
				t.Fatalf("err = %v, want kind %s", err, tt.wantKind)
			}
			if h.count(t) != 0 {
				t.Fatal("no record expected")
			}
		})
	}
}

func TestVerifyGatewayEchoesOtherReference(t *testing.T) {
	h := newHarness(t, successTx("SOMETHING_ELSE", 1000))
	_, err := h.svc.Verify(context.Background(), VerifyInput{Token: "token-alice", Reference: "PSK_006", ExpectedCurrency: "NGN"})
	if !apperr.IsKind(err, apperr.BadGateway) {
		t.Fatalf("err = %v", err)
	}
}

func TestVerifyCrossUserIsolation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, successTx("PSK_007", 1000))

	first, err := h.svc.Verify(ctx, VerifyInput{Token: "token-alice", Reference: "PSK_007", ExpectedCurrency: "NGN"})
	if err != nil || !first.Success {
		t.Fatalf("alice: res=%+v err=%v", first, err)
	}

	res, err := h.svc.Verify(ctx, VerifyInput{Token: "token-bob", Reference: "PSK_007", ExpectedCurrency: "NGN"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Outcome != OutcomeReferenceTaken || res.Record != nil {
		t.Fatalf("bob res = %+v", res)
	}
	if res.Reason != "Payment reference already used" {
		t.Fatalf("reason = %q", res.Reason)
	}
	if got := h.gw.calls.Load(); got != 2 {
		t.Fatalf("gateway calls = %d, want 2 (bob misses the fast path)", got)
	}

	if _, err := h.svc.Get(ctx, "bob", "PSK_007"); !apperr.IsKind(err, apperr.NotFound) {
		t.Fatalf("bob Get err = %v", err)
	}
	rec, err := h.svc.Get(ctx, "alice", "PSK_007")
	if err != nil || rec.ID != first.Record.ID {
		t.Fatalf("alice Get rec=%+v err=%v", rec, err)
	}
	if h.hook.count() != 1 {
		t.Fatalf("hook ran %d times", h.hook.count())
	}
}

func TestVerifyConcurrentCallsRecordOnce(t *testing.T) {
	const n = 8
	var arrived sync.WaitGroup
	arrived.Add(n)
	verify := successTx("PSK_008", 2500)
	h := newHarness(t, func(ctx context.Context, ref string) (Transaction, error) {
		// hold every caller at the gateway so all of them miss the fast path
		arrived.Done()
		arrived.Wait()
		return verify(ctx, ref)
	})

	results := make([]Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.svc.Verify(context.Background(), VerifyInput{
				Token: "token-alice", Reference: "PSK_008", ExpectedAmount: amount(2500), ExpectedCurrency: "NGN",
			})
		}(i)
	}
	wg.Wait()

	var accepted int
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if !results[i].Success || results[i].Record == nil {
			t.Fatalf("call %d: %+v", i, results[i])
		}
		if results[i].Record.ID != results[0].Record.ID {
			t.Fatalf("call %d saw record %s, want %s", i, results[i].Record.ID, results[0].Record.ID)
		}
		if results[i].Outcome == OutcomeAccepted {
			accepted++
		}
	}
	if accepted != 1 {
		t.Fatalf("accepted = %d, want 1", accepted)
	}
	if h.count(t) != 1 {
		t.Fatal("expected exactly one record")
	}
	if h.hook.count() != 1 {
		t.Fatalf("hook ran %d times, want 1", h.hook.count())
	}
}

func TestVerifyHookFailureDoesNotChangeResult(t *testing.T) {
	h := newHarness(t, successTx("PSK_009", 1000))
	h.hook.err = errors.New("bucket unavailable")

	res, err := h.svc.Verify(context.Background(), VerifyInput{Token: "token-alice", Reference: "PSK_009", ExpectedCurrency: "NGN"})
	if err != nil || !res.Success {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if !strings.Contains(h.logs.String(), "record hook failed") {
		t.Fatalf("hook failure not logged: %s", h.logs.String())
	}
}

func TestVerifyMissingPaidAtUsesClock(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, func(context.Context, string) (Transaction, error) {
		return Transaction{Reference: "PSK_010", Status: StatusSuccess, AmountMinorUnits: 1, Currency: "NGN"}, nil
	})
	h.svc.now = func() time.Time { return fixed }

	res, err := h.svc.Verify(context.Background(), VerifyInput{Token: "token-alice", Reference: "PSK_010", ExpectedCurrency: "NGN"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Record.PaidAt.Equal(fixed) {
		t.Fatalf("paidAt = %v", res.Record.PaidAt)
	}
	if string(res.Record.GatewayPayload) != "{}" {
		t.Fatalf("payload = %s", res.Record.GatewayPayload)
	}
}

type failingLedger struct{ err error }

func (f failingLedger) FindByReferenceAndUser(context.Context, string, string) (*PaymentRecord, error) {
	return nil, nil
}

func (f failingLedger) InsertIfAbsent(context.Context, PaymentRecord) (PaymentRecord, bool, error) {
	return PaymentRecord{}, false, f.err
}

func TestVerifyPersistenceFailure(t *testing.T) {
	gw := &fakeGateway{verifyFn: successTx("PSK_011", 1000)}
	svc := NewService(tokenAuth(), gw, failingLedger{err: errors.New("connection reset")})
	_, err := svc.Verify(context.Background(), VerifyInput{Token: "token-alice", Reference: "PSK_011", ExpectedCurrency: "NGN"})
	if !apperr.IsKind(err, apperr.Internal) {
		t.Fatalf("err = %v", err)
	}
	if apperr.PublicMessage(err) != "Failed to save payment record" {
		t.Fatalf("public message = %q", apperr.PublicMessage(err))
	}
}

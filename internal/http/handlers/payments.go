package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Toyin05/ecommerce/internal/http/middleware"
	"github.com/Toyin05/ecommerce/internal/http/validation"
	"github.com/Toyin05/ecommerce/internal/modules/auth"
	"github.com/Toyin05/ecommerce/internal/modules/payments"
	"github.com/Toyin05/ecommerce/internal/shared/apperr"
)

type PaymentService interface {
	Verify(ctx context.Context, in payments.VerifyInput) (payments.Result, error)
	Get(ctx context.Context, userID, reference string) (payments.PaymentRecord, error)
}

type PaymentHandler struct {
	Logger          *slog.Logger
	Svc             PaymentService
	DefaultCurrency string
	VerifyTimeout   time.Duration
}

func NewPaymentHandler(logger *slog.Logger, svc PaymentService, defaultCurrency string, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{Logger: logger, Svc: svc, DefaultCurrency: defaultCurrency, VerifyTimeout: timeout}
}

type verifyRequest struct {
	Reference      string `json:"reference"`
	ExpectedAmount *int64 `json:"expectedAmount" binding:"omitempty,gt=0"`
	Currency       string `json:"currency" binding:"omitempty,len=3,alpha"`
}

type paymentJSON struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	PaidAt    time.Time `json:"paidAt"`
}

type verifyResponse struct {
	Success bool         `json:"success"`
	Error   string       `json:"error,omitempty"`
	Payment *paymentJSON `json:"payment,omitempty"`
}

func toPaymentJSON(rec payments.PaymentRecord) *paymentJSON {
	return &paymentJSON{
		ID:        rec.ID,
		Reference: rec.Reference,
		Amount:    rec.AmountMinorUnits,
		Currency:  rec.Currency,
		Status:    rec.Status,
		PaidAt:    rec.PaidAt.UTC(),
	}
}

// POST /api/payments/verify
// POST /functions/v1/verify-payment
func (h *PaymentHandler) Verify(c *gin.Context) {
	token := auth.BearerToken(c.GetHeader("Authorization"))
	if token == "" {
		middleware.Fail(c, apperr.UnauthorizedErr("Authorization required"))
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		msg := "Invalid request"
		if validation.IsDecodeError(err) {
			msg = "Invalid JSON body"
		}
		middleware.Fail(c, apperr.InvalidErr(msg, validation.FromBindError(err, &req)))
		return
	}

	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = h.DefaultCurrency
	}

	// a client that hangs up must not abort a payment that is already being recorded
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.VerifyTimeout)
	defer cancel()

	res, err := h.Svc.Verify(ctx, payments.VerifyInput{
		Token:            token,
		Reference:        req.Reference,
		ExpectedAmount:   req.ExpectedAmount,
		ExpectedCurrency: currency,
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	out := verifyResponse{Success: res.Success}
	if !res.Success {
		out.Error = res.Reason
	}
	if res.Record != nil {
		out.Payment = toPaymentJSON(*res.Record)
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/payments/:reference
func (h *PaymentHandler) Get(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		middleware.Fail(c, apperr.UnauthorizedErr("Authorization required"))
		return
	}

	rec, err := h.Svc.Get(c.Request.Context(), uid, c.Param("reference"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, verifyResponse{Success: rec.Succeeded(), Payment: toPaymentJSON(rec)})
}

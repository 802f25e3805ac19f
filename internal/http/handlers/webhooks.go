package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Toyin05/ecommerce/internal/modules/payments"
)

const maxWebhookBody = 1 << 20

type WebhookProcessor interface {
	Handle(ctx context.Context, providerName string, ev payments.WebhookEvent, rawBody []byte) error
}

type WebhookHandler struct {
	Logger     *slog.Logger
	Providers  map[string]payments.Provider
	WebhookSvc WebhookProcessor
}

func NewWebhookHandler(logger *slog.Logger, svc WebhookProcessor, providers ...payments.Provider) *WebhookHandler {
	byName := make(map[string]payments.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &WebhookHandler{Logger: logger, Providers: byName, WebhookSvc: svc}
}

// POST /webhooks/:provider
// Body is raw JSON; the signature is checked by the provider adapter.
func (h *WebhookHandler) Handle(c *gin.Context) {
	p, ok := h.Providers[c.Param("provider")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "unknown provider"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	ev, err := p.VerifyAndParseWebhook(c.Request.Header, body)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			h.Logger.WarnContext(c.Request.Context(), "webhook signature rejected", "provider", p.Name())
		}
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid signature or payload"})
		return
	}

	if err := h.WebhookSvc.Handle(c.Request.Context(), p.Name(), ev, body); err != nil {
		// 500 so the provider retries
		h.Logger.ErrorContext(c.Request.Context(), "webhook apply failed", "provider", p.Name(), "event_id", ev.EventID, "type", ev.Type, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

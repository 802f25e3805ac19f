// Package http wires the gin engine: middleware, CORS and routes.
package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Toyin05/ecommerce/internal/http/handlers"
	"github.com/Toyin05/ecommerce/internal/http/middleware"
	"github.com/Toyin05/ecommerce/internal/modules/auth"
	"github.com/Toyin05/ecommerce/internal/modules/payments"
)

type Deps struct {
	Auth            auth.Authenticator
	Payments        handlers.PaymentService
	Webhooks        handlers.WebhookProcessor
	Providers       []payments.Provider
	Ping            func(ctx context.Context) error
	DefaultCurrency string
	VerifyTimeout   time.Duration
}

func corsConfig() cors.Config {
	return cors.Config{
		AllowAllOrigins:           true,
		AllowMethods:              []string{"POST", "GET", "OPTIONS"},
		AllowHeaders:              []string{"authorization", "x-client-info", "apikey", "content-type"},
		ExposeHeaders:             []string{middleware.HeaderRequestID},
		AllowCredentials:          false,
		MaxAge:                    24 * time.Hour,
		OptionsResponseStatusCode: 200,
	}
}

func NewRouter(logger *slog.Logger, d Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	// order matters: ErrorHandler must wrap Recovery so recovered panics are rendered
	r.Use(
		cors.New(corsConfig()),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.ErrorHandler(logger),
		middleware.Recovery(logger),
	)
	r.NoRoute(middleware.NoRoute())
	r.NoMethod(middleware.NoMethod())

	health := &handlers.HealthHandler{Ping: d.Ping}
	r.GET("/healthz", health.Check)

	ph := handlers.NewPaymentHandler(logger, d.Payments, d.DefaultCurrency, d.VerifyTimeout)
	r.POST("/functions/v1/verify-payment", ph.Verify)

	api := r.Group("/api/payments")
	{
		api.POST("/verify", ph.Verify)
		api.GET("/:reference", middleware.RequireAuth(d.Auth), ph.Get)
	}

	if d.Webhooks != nil {
		wh := handlers.NewWebhookHandler(logger, d.Webhooks, d.Providers...)
		r.POST("/webhooks/:provider", wh.Handle)
	}

	return r
}

// Package app assembles the service from configuration for the binaries in cmd/.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Toyin05/ecommerce/internal/config"
	"github.com/Toyin05/ecommerce/internal/database"
	"github.com/Toyin05/ecommerce/internal/events"
	apphttp "github.com/Toyin05/ecommerce/internal/http"
	"github.com/Toyin05/ecommerce/internal/modules/auth"
	"github.com/Toyin05/ecommerce/internal/modules/payments"
	"github.com/Toyin05/ecommerce/internal/modules/payments/midtrans"
	"github.com/Toyin05/ecommerce/internal/modules/payments/paystack"
	"github.com/Toyin05/ecommerce/internal/storage"
)

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	Auth     auth.Authenticator
	Provider payments.Provider
	Payments *payments.Service
	Webhooks *payments.WebhookService
	Store    storage.Storage

	publisher events.Publisher
}

// NewProvider returns the gateway client selected by GATEWAY_PROVIDER.
func NewProvider(cfg config.GatewayConfig) (payments.Provider, error) {
	switch cfg.Provider {
	case "", paystack.Name:
		return paystack.New(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.Timeout), nil
	case midtrans.Name:
		return midtrans.New(cfg.MidtransServerKey, cfg.MidtransEnv), nil
	default:
		return nil, fmt.Errorf("unknown GATEWAY_PROVIDER: %s", cfg.Provider)
	}
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	a.DB = db

	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, db, logger); err != nil {
			a.Close()
			return nil, err
		}
	}

	if cfg.Redis.Addr != "" {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			// the cache is optional; lookups fall through to the provider
			logger.WarnContext(ctx, "redis unreachable at startup", "addr", cfg.Redis.Addr, "err", err)
		}
	}

	a.Auth, err = auth.FromConfig(cfg.Auth, db, a.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	if c, ok := a.Auth.(*auth.Cached); ok {
		c.SetLogger(logger)
	}

	a.Provider, err = NewProvider(cfg.Gateway)
	if err != nil {
		a.Close()
		return nil, err
	}

	var hooks []payments.RecordHook
	a.Store, err = storage.FromConfig(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.Store != nil {
		hooks = append(hooks, payments.NewReceiptArchive(a.Store))
	}

	a.publisher, err = events.FromConfig(cfg.Events, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	hooks = append(hooks, payments.NewEventHook(a.publisher))

	a.Webhooks = payments.NewWebhookService(db)
	a.Webhooks.SetLogger(logger)
	hooks = append(hooks, a.Webhooks)

	a.Payments = payments.NewService(a.Auth, a.Provider, payments.NewGormLedger(db), hooks...)
	a.Payments.SetLogger(logger)

	logger.InfoContext(ctx, "service assembled",
		"db_driver", cfg.DB.Driver,
		"gateway", a.Provider.Name(),
		"auth_mode", cfg.Auth.Mode,
		"storage", cfg.Storage.Driver,
		"events", cfg.Events.Driver,
	)
	return a, nil
}

func (a *App) RouterDeps() apphttp.Deps {
	return apphttp.Deps{
		Auth:            a.Auth,
		Payments:        a.Payments,
		Webhooks:        a.Webhooks,
		Providers:       []payments.Provider{a.Provider},
		Ping:            func(ctx context.Context) error { return database.Ping(ctx, a.DB) },
		DefaultCurrency: a.Config.DefaultCurrency,
		VerifyTimeout:   a.Config.VerifyTimeout,
	}
}

func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}

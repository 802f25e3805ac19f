// Package auth resolves bearer credentials to user ids.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Toyin05/ecommerce/internal/config"
)

var (
	// ErrUnauthorized: missing, malformed, expired or rejected credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable: the identity provider could not be reached.
	ErrUnavailable = errors.New("identity provider unavailable")
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (userID string, err error)
}

// BearerToken extracts the token from an Authorization header value.
// It returns "" when the header is not a bearer credential.
func BearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// FromConfig builds the authenticator for cfg.Mode, wrapped in a redis cache when rdb is set.
func FromConfig(cfg config.AuthConfig, db *gorm.DB, rdb *redis.Client) (Authenticator, error) {
	var a Authenticator
	switch cfg.Mode {
	case "jwt":
		a = NewJWT([]byte(cfg.JWTSecret), cfg.JWTAudience)
	case "supabase":
		a = NewSupabase(cfg.URL, cfg.APIKey, &http.Client{Timeout: 5 * time.Second})
	case "session":
		if db == nil {
			return nil, fmt.Errorf("auth: session mode needs a database")
		}
		a = NewSessions(db)
	default:
		return nil, fmt.Errorf("auth: unknown mode %q", cfg.Mode)
	}
	if rdb != nil {
		a = NewCached(a, rdb, cfg.CacheTTL)
	}
	return a, nil
}

func tokenHash(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

func tokenHashHex(token string) string {
	return hex.EncodeToString(tokenHash(token))
}

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session is a database-backed API session. Only the token hash is stored.
type Session struct {
	ID         string    `gorm:"primaryKey;type:char(36)"`
	UserID     string    `gorm:"type:varchar(64);not null;index:ix_sessions_user_id"`
	TokenHash  []byte    `gorm:"size:32;not null;uniqueIndex:ux_sessions_token_hash"`
	ExpiresAt  time.Time `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
	LastSeenAt time.Time `gorm:"not null"`
}

func (Session) TableName() string { return "sessions" }

type Sessions struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSessions(db *gorm.DB) *Sessions {
	return &Sessions{db: db, now: time.Now}
}

func (s *Sessions) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}

	var sess Session
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND expires_at > ?", tokenHash(token), s.now().UTC()).
		First(&sess).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUnauthorized
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return sess.UserID, nil
}

// Create issues a new session for userID and returns the raw bearer token.
func (s *Sessions) Create(ctx context.Context, userID string, ttl time.Duration) (string, *Session, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", nil, err
	}
	token := hex.EncodeToString(b)

	now := s.now().UTC()
	sess := &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		TokenHash:  tokenHash(token),
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return "", nil, err
	}
	return token, sess, nil
}

// Delete removes a session by ID.
func (s *Sessions) Delete(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Delete(&Session{}, "id = ?", sessionID).Error
}

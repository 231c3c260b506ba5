package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rescueboard/internal/cache"
)

const sessionKeyPrefix = "session:"

// ErrSessionNotFound is returned when a session was revoked or has expired.
var ErrSessionNotFound = errors.New("session not found")

// TokenStoreInterface defines the interface for session storage operations.
type TokenStoreInterface interface {
	StoreSession(ctx context.Context, tokenID string, userID uint, ttl time.Duration) error
	GetSession(ctx context.Context, tokenID string) (userID uint, err error)
	DeleteSession(ctx context.Context, tokenID string) error
}

// TokenStore keeps one Redis key per issued bearer token.
type TokenStore struct {
	cache *cache.Client
}

// Ensure TokenStore implements TokenStoreInterface
var _ TokenStoreInterface = (*TokenStore)(nil)

// NewTokenStore creates a new token store.
func NewTokenStore(cache *cache.Client) *TokenStore {
	return &TokenStore{cache: cache}
}

type sessionData struct {
	UserID    uint      `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreSession records a live session with TTL.
func (s *TokenStore) StoreSession(ctx context.Context, tokenID string, userID uint, ttl time.Duration) error {
	payload, err := json.Marshal(sessionData{UserID: userID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.cache.Set(ctx, sessionKeyPrefix+tokenID, payload, ttl); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// GetSession returns the user owning a live session.
func (s *TokenStore) GetSession(ctx context.Context, tokenID string) (uint, error) {
	data, err := s.cache.Get(ctx, sessionKeyPrefix+tokenID)
	if err != nil || data == nil {
		return 0, ErrSessionNotFound
	}

	var sess sessionData
	if err := json.Unmarshal(data, &sess); err != nil {
		return 0, fmt.Errorf("unmarshal session: %w", err)
	}
	return sess.UserID, nil
}

// DeleteSession revokes a single session. Deleting an unknown session is not an error.
func (s *TokenStore) DeleteSession(ctx context.Context, tokenID string) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+tokenID)
}

package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/grocery-backend/pkg/config"
	redisclient "github.com/angelmondragon/grocery-backend/pkg/redis"
	"github.com/google/uuid"
)

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	AccessSessionKey(accessID string) string
}

// Manager tracks live access sessions in Redis so logout can revoke a token
// before it expires.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	ttl := cfg.AccessTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive")
	}
	return &Manager{
		store: client,
		keyer: client,
		ttl:   ttl,
	}, nil
}

// Start registers a new session for the user and returns its access ID (the JWT jti).
func (m *Manager) Start(ctx context.Context, userID uint64) (string, error) {
	if userID == 0 {
		return "", fmt.Errorf("user id is required")
	}
	accessID := NewAccessID()
	if err := m.store.Set(ctx, m.keyer.AccessSessionKey(accessID), strconv.FormatUint(userID, 10), m.ttl); err != nil {
		return "", err
	}
	return accessID, nil
}

// Revoke deletes the session tied to the access identifier.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	return m.store.Del(ctx, m.keyer.AccessSessionKey(accessID))
}

// HasSession reports whether the provided access ID is still active.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	return m.store.Exists(ctx, m.keyer.AccessSessionKey(accessID))
}

// NewAccessID produces the identifier used as the JWT jti/Redis key.
func NewAccessID() string {
	return uuid.NewString()
}

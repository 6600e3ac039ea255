package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"slack-jira-bridge/internal/storage"
)

// StateTTL bounds the exposure window of a leaked authorization URL.
const StateTTL = 10 * time.Minute

// StateStore issues and consumes single-use CSRF state tokens binding an
// OAuth authorization URL to the owner who requested it.
type StateStore interface {
	// Issue creates a fresh random token for the owner with a 10 minute TTL
	Issue(ctx context.Context, ownerID string) (string, error)
	// Consume atomically reads and destroys the token, returning its owner.
	// Unknown, expired, and already-consumed tokens all fail with
	// ErrInvalidState. No token ever succeeds twice.
	Consume(ctx context.Context, token string) (string, error)
}

// RedisConn is the subset of the Redis client the state store needs. The
// indirection keeps the store testable against miniredis-backed wrappers.
type RedisConn interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
}

// statePayload is the JSON stored under each state key.
type statePayload struct {
	OwnerID   string    `json:"owner_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RedisStateStore keeps pending states in Redis. TTL expiry handles cleanup
// and GETDEL gives atomic single-use consumption across instances.
type RedisStateStore struct {
	client RedisConn
	prefix string
	now    func() time.Time
}

// NewRedisStateStore creates a Redis-backed state store.
func NewRedisStateStore(client RedisConn) *RedisStateStore {
	return &RedisStateStore{
		client: client,
		prefix: "oauth:state:",
		now:    time.Now,
	}
}

func (s *RedisStateStore) Issue(ctx context.Context, ownerID string) (string, error) {
	token := uuid.NewString()

	payload, err := json.Marshal(statePayload{
		OwnerID:   ownerID,
		ExpiresAt: s.now().Add(StateTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to serialize state: %w", err)
	}

	if err := s.client.Set(ctx, s.prefix+token, string(payload), StateTTL); err != nil {
		return "", fmt.Errorf("failed to persist state: %w", err)
	}

	return token, nil
}

func (s *RedisStateStore) Consume(ctx context.Context, token string) (string, error) {
	data, err := s.client.GetDel(ctx, s.prefix+token)
	if err != nil {
		if err == goredis.Nil {
			return "", ErrInvalidState
		}
		return "", fmt.Errorf("failed to consume state: %w", err)
	}

	var payload statePayload
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return "", fmt.Errorf("failed to decode state: %w", err)
	}

	// Redis TTL normally removes expired keys; the explicit check covers
	// clock drift between issuer and Redis
	if s.now().After(payload.ExpiresAt) {
		return "", ErrInvalidState
	}

	return payload.OwnerID, nil
}

// SQLStateStore keeps pending states in the relational store. Used when no
// Redis is configured; a janitor sweeps expired rows.
type SQLStateStore struct {
	store storage.Store
	now   func() time.Time
}

// NewSQLStateStore creates a store-backed state store.
func NewSQLStateStore(store storage.Store) *SQLStateStore {
	return &SQLStateStore{
		store: store,
		now:   time.Now,
	}
}

func (s *SQLStateStore) Issue(ctx context.Context, ownerID string) (string, error) {
	token := uuid.NewString()

	err := s.store.SaveState(ctx, &storage.OAuthState{
		Token:     token,
		OwnerID:   ownerID,
		ExpiresAt: s.now().Add(StateTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to persist state: %w", err)
	}

	return token, nil
}

func (s *SQLStateStore) Consume(ctx context.Context, token string) (string, error) {
	state, err := s.store.ConsumeState(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to consume state: %w", err)
	}
	if state == nil {
		return "", ErrInvalidState
	}

	// The row is already gone either way; an expired state is still invalid
	if s.now().After(state.ExpiresAt) {
		return "", ErrInvalidState
	}

	return state.OwnerID, nil
}

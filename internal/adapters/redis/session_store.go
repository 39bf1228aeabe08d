// Package redis provides Redis-backed adapters for owner sessions.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/quantsignal/forecast-api/internal/data"
	domainauth "github.com/quantsignal/forecast-api/internal/domain/auth"
)

// DefaultSessionPrefix namespaces session keys away from counters and caches.
const DefaultSessionPrefix = "forecast:session:"

// ErrNotFound is returned when a session is absent or expired.
var ErrNotFound = errors.New("session not found")

// SessionStoreOptions configures SessionStore.
type SessionStoreOptions struct {
	Client redis.UniversalClient // Required
	Prefix string                // Optional: DefaultSessionPrefix
	Clock  data.TimeProvider     // Optional: system clock
}

// SessionStore keeps sessions as JSON with a TTL matching ExpiresAt.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
	clock  data.TimeProvider
}

// NewSessionStore creates a Redis session store.
func NewSessionStore(opts SessionStoreOptions) (*SessionStore, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	clock := opts.Clock
	if clock == nil {
		clock = &data.RealTimeProvider{}
	}
	return &SessionStore{client: opts.Client, prefix: prefix, clock: clock}, nil
}

func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	ttl := sess.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return errors.New("session is expired")
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, s.prefix+sess.ID, payload, ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}

	raw, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Session{}, ErrNotFound
		}
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if sess.Expired(s.clock.Now()) {
		if err := s.Delete(ctx, id); err != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", err)
		}
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.client.Del(ctx, s.prefix+id).Err()
}

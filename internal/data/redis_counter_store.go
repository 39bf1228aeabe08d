package data

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantsignal/forecast-api/internal/core"
)

// incrementWindowScript increments KEYS[1] and sets its expiry only when the
// increment created the key, so the window is fixed at the first request.
var incrementWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

const (
	defaultOpTimeout = 500 * time.Millisecond
	scanPageSize     = 500
)

// RedisCounterStore implements core.CounterStore on Redis.
type RedisCounterStore struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

var _ core.CounterStore = (*RedisCounterStore)(nil)

// NewRedisCounterStore wraps client. Each call is bounded by opTimeout.
func NewRedisCounterStore(client redis.UniversalClient, opTimeout time.Duration) *RedisCounterStore {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &RedisCounterStore{client: client, opTimeout: opTimeout}
}

func (s *RedisCounterStore) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// classify marks transport failures and timeouts as ErrStoreUnavailable.
// Error replies from the server are returned as-is.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var replyErr redis.Error
	if errors.As(err, &replyErr) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("redis %s: %w", op, err)
	}
	return fmt.Errorf("redis %s: %w: %w", op, core.ErrStoreUnavailable, err)
}

func requireKey(key string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	return nil
}

// Increment atomically adds one to key.
func (s *RedisCounterStore) Increment(ctx context.Context, key string) (int64, error) {
	if err := requireKey(key); err != nil {
		return 0, err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	n, err := s.client.Incr(ctx, key).Result()
	return n, classify("incr", err)
}

// IncrementWindow runs INCR and the first-hit PEXPIRE server-side in one round trip.
func (s *RedisCounterStore) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	if err := requireKey(key); err != nil {
		return 0, err
	}
	if window <= 0 {
		return 0, fmt.Errorf("window must be positive, got %s", window)
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	n, err := incrementWindowScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
	return n, classify("incr window", err)
}

// Expire sets a TTL on key.
func (s *RedisCounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := requireKey(key); err != nil {
		return err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	return classify("expire", s.client.PExpire(ctx, key, ttl).Err())
}

// Get returns the value of key.
func (s *RedisCounterStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := requireKey(key); err != nil {
		return "", false, err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify("get", err)
	}
	return v, true, nil
}

// Set stores value under key.
func (s *RedisCounterStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := requireKey(key); err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	return classify("set", s.client.Set(ctx, key, value, ttl).Err())
}

// Delete removes keys.
func (s *RedisCounterStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	if _, ok := s.client.(*redis.ClusterClient); ok && len(keys) > 1 {
		// Keys may hash to different slots.
		var total int64
		for _, k := range keys {
			n, err := s.client.Del(ctx, k).Result()
			if err != nil {
				return total, classify("del", err)
			}
			total += n
		}
		return total, nil
	}

	n, err := s.client.Del(ctx, keys...).Result()
	return n, classify("del", err)
}

// TTL returns the remaining lifetime of key, or -1 when it has none.
func (s *RedisCounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := requireKey(key); err != nil {
		return 0, err
	}
	ctx, cancel := s.bounded(ctx)
	defer cancel()

	d, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, classify("pttl", err)
	}
	if d < 0 {
		return -1, nil
	}
	return d, nil
}

// Scan returns every key starting with prefix. Each SCAN page gets its own
// timeout. On a cluster every master is scanned.
func (s *RedisCounterStore) Scan(ctx context.Context, prefix string) ([]string, error) {
	match := prefix + "*"

	cluster, ok := s.client.(*redis.ClusterClient)
	if !ok {
		return s.scanNode(ctx, s.client, match)
	}

	var (
		mu   sync.Mutex
		keys []string
	)
	err := cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		found, err := s.scanNode(ctx, node, match)
		if err != nil {
			return err
		}
		mu.Lock()
		keys = append(keys, found...)
		mu.Unlock()
		return nil
	})
	return keys, err
}

func (s *RedisCounterStore) scanNode(ctx context.Context, c redis.Cmdable, match string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		pageCtx, cancel := s.bounded(ctx)
		page, next, err := c.Scan(pageCtx, cursor, match, scanPageSize).Result()
		cancel()
		if err != nil {
			return keys, classify("scan", err)
		}
		keys = append(keys, page...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

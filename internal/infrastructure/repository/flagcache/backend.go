package flagcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riskibarqy/dashboard-bootstrap/internal/platform/cache"
)

// Backend remembers which users have completed onboarding. Only positive flags are
// stored, so a stale entry can never bring the onboarding surface back.
type Backend interface {
	Completed(ctx context.Context, userID string) (bool, error)
	Remember(ctx context.Context, userID string) error
}

type MemoryBackend struct {
	store *cache.Store[bool]
}

func NewMemoryBackend(ttl time.Duration, maxEntries int) *MemoryBackend {
	return &MemoryBackend{store: cache.NewStore(ttl, cache.WithMaxEntries[bool](maxEntries))}
}

func (b *MemoryBackend) Completed(ctx context.Context, userID string) (bool, error) {
	v, ok := b.store.Get(ctx, userID)
	return ok && v, nil
}

func (b *MemoryBackend) Remember(ctx context.Context, userID string) error {
	b.store.Set(ctx, userID, true)
	return nil
}

type RedisBackend struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisBackend(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = "dashboard"
	}
	return &RedisBackend{client: client, prefix: prefix, ttl: ttl}
}

func (b *RedisBackend) key(userID string) string {
	return cache.Key(b.prefix, "profile", "onboarded", userID)
}

func (b *RedisBackend) Completed(ctx context.Context, userID string) (bool, error) {
	n, err := b.client.Exists(ctx, b.key(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *RedisBackend) Remember(ctx context.Context, userID string) error {
	return b.client.Set(ctx, b.key(userID), "1", b.ttl).Err()
}

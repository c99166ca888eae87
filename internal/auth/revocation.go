package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tnm3allim/marketplace/internal/cache"
)

// Revocations tracks logged-out session ids until their token would expire anyway.
type Revocations interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

type RedisRevocations struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisRevocations(rdb *redis.Client) *RedisRevocations {
	return &RedisRevocations{rdb: rdb, prefix: "revoked:"}
}

func (r *RedisRevocations) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	ttl := time.Until(until)

	if ttl <= 0 {
		return nil
	}

	return r.rdb.Set(ctx, r.prefix+sessionID, 1, ttl).Err()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	err := r.rdb.Get(ctx, r.prefix+sessionID).Err()

	if errors.Is(err, redis.Nil) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// MemoryRevocations serves single-instance deployments without Redis.
type MemoryRevocations struct {
	c *cache.Cache[struct{}]
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{c: cache.New[struct{}](time.Hour)}
}

func (r *MemoryRevocations) Revoke(_ context.Context, sessionID string, until time.Time) error {
	ttl := time.Until(until)

	if ttl <= 0 {
		return nil
	}

	r.c.SetFor(sessionID, struct{}{}, ttl)

	return nil
}

func (r *MemoryRevocations) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	_, ok := r.c.Get(sessionID)
	return ok, nil
}

// Sweep forgets revocations whose session has expired anyway.
func (r *MemoryRevocations) Sweep() int {
	return r.c.Sweep()
}

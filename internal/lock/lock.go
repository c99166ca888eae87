// Package lock serializes profile updates per user.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrHeld = errors.New("lock held by another request")

// Locker hands out short-lived exclusive locks. Release is safe to call after the
// lock expired; it never drops a lock acquired by someone else.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: "lock:"}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	k := l.prefix + key

	ok, err := l.rdb.SetNX(ctx, k, token, ttl).Result()

	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrHeld
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_ = releaseScript.Run(ctx, l.rdb, []string{k}, token).Err()
	}, nil
}

// LocalLocker is the in-process equivalent for single-instance deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localHold
	now  func() time.Time
}

type localHold struct {
	token string
	exp   time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]localHold{}, now: time.Now}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.held[key]; ok && l.now().Before(h.exp) {
		return nil, ErrHeld
	}

	token := uuid.NewString()
	l.held[key] = localHold{token: token, exp: l.now().Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		if h, ok := l.held[key]; ok && h.token == token {
			delete(l.held, key)
		}
	}, nil
}

// Sweep drops locks whose holder never released them before the ttl ran out.
func (l *LocalLocker) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0

	for k, h := range l.held {
		if !now.Before(h.exp) {
			delete(l.held, k)
			n++
		}
	}

	return n
}

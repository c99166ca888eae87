package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window counter per key, held in process memory.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	clients map[string]*clientBucket
	now     func() time.Time
}

type clientBucket struct {
	count     int
	windowEnd time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

// allow reports whether key still has budget, or how long until it does.
func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.clients[key]

	if !ok || now.After(b.windowEnd) {
		rl.clients[key] = &clientBucket{count: 1, windowEnd: now.Add(rl.window)}

		if len(rl.clients) > 10000 {
			rl.evictLocked(now)
		}

		return true, 0
	}

	if b.count >= rl.limit {
		return false, b.windowEnd.Sub(now)
	}

	b.count++

	return true, 0
}

func (rl *RateLimiter) evictLocked(now time.Time) {
	for k, b := range rl.clients {
		if now.After(b.windowEnd) {
			delete(rl.clients, k)
		}
	}
}

func (rl *RateLimiter) Middleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)

		if key == "" {
			key = clientIP(c)
		}

		ok, wait := rl.allow(c.FullPath() + "|" + key)

		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(wait.Round(time.Second).Seconds())))
			abortJSON(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.")
			return
		}

		c.Next()
	}
}

func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// KeyByUserOrIP limits signed-in callers per account and everyone else per address.
func KeyByUserOrIP(c *gin.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return "user:" + strconv.FormatInt(id.UserID, 10)
	}

	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()

	host, _, err := net.SplitHostPort(ip)

	if err == nil && host != "" {
		return host
	}

	return ip
}

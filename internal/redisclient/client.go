package redisclient

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured at all.
func (c Config) Enabled() bool {
	return c.Addr != ""
}

type Client struct {
	rdb *redis.Client
}

func New(cfg Config) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{rdb: rdb}
}

// Ping checks connectivity within a short deadline.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Raw exposes the underlying client to the revocation list and the update lock.
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

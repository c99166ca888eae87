package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env  string `envconfig:"APP_ENV" default:"dev"`
	Port int    `envconfig:"PORT" default:"8080"`

	// DATABASE_URL wins over the DB_* parts when set.
	DBURL      string `envconfig:"DATABASE_URL"`
	DBHost     string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"tnm3allim"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"tnm3allim"`
	DBName     string `envconfig:"DB_NAME" default:"tnm3allim"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	// Empty RedisAddr switches sessions revocation and update locks to in-process implementations.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	SessionSecret string        `envconfig:"SESSION_SECRET" default:"change-me-in-prod"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	BcryptCost    int           `envconfig:"BCRYPT_COST" default:"10"`

	UploadDir      string `envconfig:"UPLOAD_DIR" default:"public/uploads"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`

	ProfileStepTimeout    time.Duration `envconfig:"PROFILE_STEP_TIMEOUT" default:"5s"`
	ProfilePruneOldAvatar bool          `envconfig:"PROFILE_PRUNE_OLD_AVATAR" default:"false"`
	ProfileLockTTL        time.Duration `envconfig:"PROFILE_LOCK_TTL" default:"2m"`

	ResetTokenTTL time.Duration `envconfig:"RESET_TOKEN_TTL" default:"1h"`
	PublicBaseURL string        `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"localhost:4317"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	AdminName     string `envconfig:"ADMIN_NAME" default:"Administrator"`

	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
	ListingCacheTTL time.Duration `envconfig:"LISTING_CACHE_TTL" default:"30s"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config

	err := envconfig.Process("", &cfg)

	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if cfg.DBURL == "" {
		cfg.DBURL = cfg.buildDBURL()
	}

	return cfg, nil
}

func (c Config) buildDBURL() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

func (c Config) IsProd() bool {
	return strings.EqualFold(c.Env, "prod")
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

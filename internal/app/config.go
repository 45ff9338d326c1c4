package app

import (
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBSchema    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWTIssuer string

	// If true:
	// - /readyz returns 503 unless the database is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, SLATE_JWT_SECRET MUST be set (>= 32 bytes). Anonymous viewers
	// are still admitted; the policy guards against running with credential
	// verification silently disabled.
	RequireJWTSecret bool

	// Dev convenience: seed an in-memory canvas with edit access for anyone.
	// Only honored when no database is configured.
	DevCanvasID string
}

// LoadConfig loads Config from the environment with defaults.
// A .env file is honored when present; real environment variables win.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:  EnvString("SLATE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("SLATE_LOG_LEVEL", "info"),
		LogFormat: EnvString("SLATE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("SLATE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SLATE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SLATE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SLATE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("SLATE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("SLATE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("SLATE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("SLATE_DB_MIN_CONNS", 0),
		DBSchema:    EnvString("SLATE_DB_SCHEMA", "slate"),

		RedisAddr:     EnvString("SLATE_REDIS_ADDR", ""),
		RedisPassword: EnvString("SLATE_REDIS_PASSWORD", ""),
		RedisDB:       EnvInt("SLATE_REDIS_DB", 0),

		JWTSecret: EnvString("SLATE_JWT_SECRET", ""),
		JWTIssuer: EnvString("SLATE_JWT_ISSUER", ""),

		ReadinessRequireDB: EnvBool("SLATE_READINESS_REQUIRE_DB", false),
		RequireJWTSecret:   EnvBool("SLATE_REQUIRE_JWT_SECRET", false),

		DevCanvasID: EnvString("SLATE_DEV_CANVAS", ""),
	}
}

package app

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("log defaults = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.ReadHeaderTimeout != 5*time.Second {
		t.Fatalf("ReadHeaderTimeout = %v", cfg.ReadHeaderTimeout)
	}
	if cfg.DBSchema != "slate" {
		t.Fatalf("DBSchema = %q", cfg.DBSchema)
	}
	if cfg.RequireJWTSecret || cfg.ReadinessRequireDB {
		t.Fatalf("security toggles must default off")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SLATE_HTTP_ADDR", "127.0.0.1:9090")
	t.Setenv("SLATE_LOG_FORMAT", "pretty")
	t.Setenv("SLATE_HTTP_READ_TIMEOUT", "30s")
	t.Setenv("SLATE_DB_MAX_CONNS", "25")
	t.Setenv("SLATE_REDIS_ADDR", "redis:6379")
	t.Setenv("SLATE_REQUIRE_JWT_SECRET", "true")

	cfg := LoadConfig()

	if cfg.HTTPAddr != "127.0.0.1:9090" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogFormat != "pretty" {
		t.Fatalf("LogFormat = %q", cfg.LogFormat)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Fatalf("ReadTimeout = %v", cfg.ReadTimeout)
	}
	if cfg.DBMaxConns != 25 {
		t.Fatalf("DBMaxConns = %d", cfg.DBMaxConns)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("RedisAddr = %q", cfg.RedisAddr)
	}
	if !cfg.RequireJWTSecret {
		t.Fatalf("RequireJWTSecret must be true")
	}
}

func TestEnvHelpers_RejectBadValues(t *testing.T) {
	t.Setenv("T_INT", "-3")
	t.Setenv("T_INT32", "-1")
	t.Setenv("T_DUR", "banana")
	t.Setenv("T_BOOL", "maybe")
	t.Setenv("T_FLOAT", "0")

	if got := EnvInt("T_INT", 7); got != 7 {
		t.Fatalf("EnvInt = %d", got)
	}
	if got := EnvInt32("T_INT32", 7); got != 7 {
		t.Fatalf("EnvInt32 = %d", got)
	}
	if got := EnvDuration("T_DUR", time.Second); got != time.Second {
		t.Fatalf("EnvDuration = %v", got)
	}
	if got := EnvBool("T_BOOL", true); got != true {
		t.Fatalf("EnvBool = %v", got)
	}
	if got := EnvFloat("T_FLOAT", 1.5); got != 1.5 {
		t.Fatalf("EnvFloat = %v", got)
	}
}

func TestEnvHelpers_TrimWhitespace(t *testing.T) {
	t.Setenv("T_STR", "  value  ")
	t.Setenv("T_INT", " 42 ")

	if got := EnvString("T_STR", ""); got != "value" {
		t.Fatalf("EnvString = %q", got)
	}
	if got := EnvInt("T_INT", 0); got != 42 {
		t.Fatalf("EnvInt = %d", got)
	}
}

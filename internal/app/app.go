// Package app wires the Slate server runtime: config, logging, the unified
// rate limiter, the canvas store, and the realtime gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"slate/internal/canvas"
	"slate/internal/identity"
	"slate/internal/kv"
	"slate/internal/metrics"
	"slate/internal/ratelimit"
	"slate/internal/realtime"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the Slate server runtime. It owns the HTTP server and the lifecycle
// of every store the gateway depends on.
type App struct {
	cfg Config
	log Logger

	kvStore  kv.Store
	canvases canvas.Store
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics

	dbPool    *pgxpool.Pool
	dbEnabled bool

	gw *realtime.Gateway
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	kvStore, err := newKVStore(cfg, log)
	if err != nil {
		return nil, err
	}

	canvases, dbPool, dbEnabled, err := newCanvasStore(context.Background(), cfg, log)
	if err != nil {
		_ = kvStore.Close()
		return nil, err
	}

	m := metrics.New()

	limiter, err := NewLimiter(log, kvStore, m)
	if err != nil {
		_ = kvStore.Close()
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	verifier, err := newVerifier(cfg, log)
	if err != nil {
		limiter.Close()
		_ = kvStore.Close()
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}

	gw := realtime.NewGateway(log, realtime.Deps{
		Canvases: canvases,
		Verifier: verifier,
		Limiter:  limiter,
		KV:       kvStore,
		Metrics:  m,
	})

	return &App{
		cfg:       cfg,
		log:       log,
		kvStore:   kvStore,
		canvases:  canvases,
		limiter:   limiter,
		metrics:   m,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		gw:        gw,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.gw, a.metrics)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.limiter.Close()

	if err := a.canvases.Close(); err != nil {
		a.log.Error("canvas.store.close.fail", "err", err)
	}
	if err := a.kvStore.Close(); err != nil {
		a.log.Error("kv.store.close.fail", "err", err)
	}
	if a.dbPool != nil {
		a.dbPool.Close()
	}

	a.log.Info("server.stopped")
	return nil
}

// newKVStore decides between Redis-backed counters and the in-process store.
func newKVStore(cfg Config, log Logger) (kv.Store, error) {
	if cfg.RedisAddr == "" {
		log.Info("kv.inmemory")
		return kv.NewMemoryStore(), nil
	}

	store, err := kv.NewRedisStore(kv.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}

	log.Info("kv.redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	return store, nil
}

// newCanvasStore decides between Postgres-backed persistence and the
// in-memory dev store.
//
// Ownership model: App owns the pool lifecycle; PostgresStore.Close is a
// no-op.
func newCanvasStore(ctx context.Context, cfg Config, log Logger) (canvas.Store, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("canvas.store.inmemory")

		store := canvas.NewMemoryStore()
		if cfg.DevCanvasID != "" {
			store.SeedCanvas(cfg.DevCanvasID, canvas.LevelEdit)
			log.Info("canvas.dev_seed", "canvas_id", cfg.DevCanvasID)
		}
		return store, nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, err
	}

	store, err := canvas.NewPostgresStore(pool, canvas.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, err
	}

	log.Info("canvas.store.postgres", "schema", cfg.DBSchema)
	return store, pool, true, nil
}

// newVerifier decides between JWT credential verification and the static
// dev verifier. Without a secret every participant is anonymous.
func newVerifier(cfg Config, log Logger) (identity.Verifier, error) {
	if cfg.JWTSecret == "" {
		log.Warn("identity.verifier.static", "note", "no SLATE_JWT_SECRET; credentials will not verify")
		return identity.NewStaticVerifier(), nil
	}

	v, err := identity.NewJWTVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)
	if err != nil {
		return nil, err
	}
	log.Info("identity.verifier.jwt", "issuer_enforced", cfg.JWTIssuer != "")
	return v, nil
}

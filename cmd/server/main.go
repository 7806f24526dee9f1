// Command server runs the network backend: the WebSocket realtime endpoint,
// the invite click API, and the supporting health/metrics surface.
//
// Startup order matters: config, logging, tracing, storage, shared store,
// broadcaster, services, HTTP. Shutdown runs the same chain in reverse on
// SIGINT/SIGTERM with a bounded drain window.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/provell/go-network-backend/internal/auth"
	"github.com/provell/go-network-backend/internal/config"
	httpapi "github.com/provell/go-network-backend/internal/http"
	"github.com/provell/go-network-backend/internal/observability"
	"github.com/provell/go-network-backend/internal/ratelimit"
	"github.com/provell/go-network-backend/internal/realtime"
	"github.com/provell/go-network-backend/internal/repo"
	"github.com/provell/go-network-backend/internal/services"
	"github.com/provell/go-network-backend/internal/store"
	"github.com/provell/go-network-backend/internal/sysutil"
	"github.com/provell/go-network-backend/internal/ws"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

const shutdownGrace = 10 * time.Second

func main() {
	// Optional .env for local development; real deployments use the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("service", cfg.OTEL.ServiceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Relational storage
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate database")
	}
	if err := repo.EnableTracing(db); err != nil {
		logger.Warn().Err(err).Msg("database tracing disabled")
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	// Shared store: Redis when reachable, in-memory for single-node runs.
	var st store.Store
	var redisPing func(context.Context) error
	if rds, err := store.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).
			Msg("redis unreachable, falling back to in-process store (no cross-process fan-out)")
		st = store.NewMemory()
	} else {
		defer rds.Close()
		st = rds
		redisPing = rds.Ping
	}

	// Realtime fan-out
	registry := realtime.NewRegistry()
	bus := realtime.NewBroadcaster(registry, st, "", logger)
	go func() {
		if err := bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("broker consumer stopped")
		}
	}()

	// Services
	values := services.NewValueService(db, services.GormValueRepo{}, bus)
	values.BaseUnit = cfg.Realtime.BaseUnit
	conns := services.NewConnectionService(db, services.GormConnectionRepo{}, values, bus)
	clicks := services.NewClickService(st, bus)

	// Session admission and frame budgets
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	limiter := ratelimit.New(st, cfg.Realtime.RateWindow, cfg.Realtime.RateMaxPerEvent, cfg.Realtime.RateMaxGlobal)

	hub := ws.NewHub(registry, bus, verifier, limiter, conns, clicks, logger)
	hub.SendBuffer = cfg.Realtime.SendBuffer
	hub.MaxSessionErrors = cfg.Realtime.MaxSessionErrors

	// HTTP wiring
	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{
		Hub:    hub,
		Clicks: clicks,
		Healthy: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.Ping(); err != nil {
				return err
			}
			if redisPing != nil {
				pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return redisPing(pingCtx)
			}
			return nil
		},
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + sysutil.FirstNonEmpty(cfg.Port, "8080"),
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
		return
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

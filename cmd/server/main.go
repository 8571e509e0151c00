package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/whiskr/backend/internal/adapters/http"
	"github.com/whiskr/backend/internal/adapters/kv"
	"github.com/whiskr/backend/internal/adapters/notify"
	sig "github.com/whiskr/backend/internal/adapters/signal"
	"github.com/whiskr/backend/internal/adapters/storage"
	"github.com/whiskr/backend/internal/app"
	"github.com/whiskr/backend/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
	}
	defer rdb.Close()

	db, err := storage.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("failed to open sqlite")
	}
	defer db.Close()

	store := kv.NewRedis(rdb)
	presence := app.NewPresence(store, cfg.PresenceTTL)
	registry := app.NewCallRegistry(store, cfg.CallTTL)
	relay := app.NewRelay()
	callRouter := app.NewCallRouter(presence, registry, relay, db, db, notify.NewLogDispatcher())
	bridge := app.NewSessionBridge(presence, registry, relay, db)
	limiter := sig.NewRateLimiter(cfg.SignalRateLimit, cfg.SignalRateWindow)
	ws := sig.NewWSController(callRouter, bridge, limiter, cfg.ReadLimit, cfg.PingPeriod)

	r := router.SetupRouter(ctx, cfg, ws, db)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Whiskr signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

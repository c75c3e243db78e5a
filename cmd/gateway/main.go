package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentcache/gateway/analytics"
	"github.com/agentcache/gateway/auth"
	"github.com/agentcache/gateway/config"
	"github.com/agentcache/gateway/httpapi"
	"github.com/agentcache/gateway/invalidate"
	"github.com/agentcache/gateway/kvstore"
	"github.com/agentcache/gateway/logger"
	"github.com/agentcache/gateway/observability"
	"github.com/agentcache/gateway/ratelimit"
	"github.com/agentcache/gateway/router"
	"github.com/agentcache/gateway/tiercache"
	"github.com/agentcache/gateway/vectorstore"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg)

	log.Info().Str("env", cfg.Env).Msg("agentcache gateway starting")

	store, err := kvstore.NewRedisStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("redis init failed")
	}
	if err := store.Ping(context.Background()); err != nil {
		log.Warn().Err(err).Msg("redis ping failed — continuing, downstream calls will surface storage errors")
	} else {
		log.Info().Msg("redis connected")
	}

	vectors := vectorstore.NewInMemoryStore()

	authr := auth.New(store, log, cfg.NamespaceHeader)
	limiter := ratelimit.New(store, log)
	engine := tiercache.NewEngine(cfg, store, vectors, nil, log)
	invalidator := invalidate.New(store, cfg, log)
	aggregator := analytics.New(store, analytics.DefaultCostModel(), log)

	metrics, metricsReg := observability.NewMetrics()

	api := httpapi.New(authr, limiter, engine, invalidator, aggregator, metrics, cfg, log)
	r := router.New(cfg, log, api, metricsReg)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestDeadline + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-done
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		log.Info().Msg("gateway stopped gracefully")
	}
}

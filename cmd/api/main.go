package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baharkarakas/bookswap-backend/internal/api"
	"github.com/baharkarakas/bookswap-backend/internal/auth"
	"github.com/baharkarakas/bookswap-backend/internal/config"
	"github.com/baharkarakas/bookswap-backend/internal/logger"
	"github.com/baharkarakas/bookswap-backend/internal/metrics"
	"github.com/baharkarakas/bookswap-backend/internal/services"
	"github.com/baharkarakas/bookswap-backend/internal/storage"
	"github.com/baharkarakas/bookswap-backend/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg, cfg.Migrate, log)
	if err != nil {
		log.Error("storage", "driver", cfg.StorageDriver, "err", err)
		os.Exit(1)
	}
	defer store.Close()

	metrics.Init()
	wp := worker.NewPool(cfg.Workers, log)
	defer wp.Stop()

	repos := store.Repos
	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)
	exchangeSvc, err := services.NewExchangeService(repos.Transactions, repos.Books, repos.AuditLogs, wp, cfg.IdempotencyCacheSize, log)
	if err != nil {
		log.Error("exchange service", "err", err)
		os.Exit(1)
	}

	r := api.NewRouter(api.RouterDeps{
		Cfg:         cfg,
		Log:         log,
		Tokens:      tm,
		Users:       services.NewUserService(repos.Users, tm),
		Exchanges:   exchangeSvc,
		Catalog:     services.NewCatalogService(repos.Books, repos.AuditLogs, wp, log),
		Collections: services.NewCollectionService(repos.Collections, repos.Books),
		Health:      func(r *http.Request) error { return store.Ping(r.Context()) },
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env, "driver", cfg.StorageDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
}

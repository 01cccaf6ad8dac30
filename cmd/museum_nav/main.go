package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"museum_nav/internal/auth"
	"museum_nav/internal/config"
	"museum_nav/internal/handler"
	"museum_nav/internal/service"
	"museum_nav/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to the yaml config")

	flag.Parse()
	if configPath == "" {
		log.Fatal("failed get config path from flags")
	}

	cfg := config.MustLoadConfig(configPath)

	lgr := setupLogger(cfg.Env)
	lgr.Info("starting museum navigation service", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, lgr)
	if err != nil {
		lgr.Error("failed to init storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	revoked, err := openRevocationStore(cfg, lgr)
	if err != nil {
		lgr.Error("failed to init revocation store", slog.Any("error", err))
		os.Exit(1)
	}
	defer revoked.Close()

	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.TokenTTL, revoked, lgr)

	services := service.New(st, tokens, service.Config{
		BcryptCost:          cfg.BcryptCost,
		IDAttempts:          cfg.IDAttempts,
		WalkingSpeedKmh:     cfg.WalkingSpeedKmh,
		DeviationThresholdM: cfg.DeviationThresholdM,
		StopPenalty:         cfg.StopPenalty,
		MinutesPerExhibit:   cfg.MinutesPerExhibit,
		PersonalizedLimit:   cfg.PersonalizedLimit,
	}, lgr)

	h := handler.NewHandler(services, handler.Options{
		Production:         cfg.Env == config.EnvProd,
		CookieName:         cfg.CookieName,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
	}, lgr)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      h.InitRoutes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		lgr.Info("http server listening", slog.String("address", cfg.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Error("http server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	lgr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Error("graceful shutdown failed", slog.Any("error", err))
	}
}

func openStorage(ctx context.Context, cfg *config.Config, lgr *slog.Logger) (storage.Storage, error) {
	if cfg.MockMode() {
		lgr.Warn("db_url is empty, using seeded in-memory storage")
		return storage.NewMemoryStorage(), nil
	}
	return storage.NewPostgresStorage(ctx, cfg.DbURL)
}

func openRevocationStore(cfg *config.Config, lgr *slog.Logger) (auth.RevocationStore, error) {
	if cfg.BadgerPath == "" {
		lgr.Debug("keeping revoked tokens in memory")
		return auth.NewMemoryRevocationStore(), nil
	}
	return auth.OpenBadgerRevocationStore(cfg.BadgerPath)
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}

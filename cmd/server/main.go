// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"gymdesk/internal/bootstrap"
	"gymdesk/internal/config"
	"gymdesk/internal/identity"
	"gymdesk/internal/logging"
	"gymdesk/internal/membership"
	"gymdesk/internal/notify"
	"gymdesk/internal/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Setup(ctx, "gymdesk", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("flushing traces failed", "error", err)
		}
	}()

	stores, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Warn("closing stores failed", "error", err)
		}
	}()

	gate, err := buildGate(cfg, logger)
	if err != nil {
		logger.Error("failed to build access gate", "error", err)
		os.Exit(1)
	}

	notices := notify.NewCenter()
	svc := membership.NewService(stores.Facade(logger), membership.Options{
		Notifier:       notices,
		Allocator:      identity.NewAllocator(),
		Limiter:        rate.NewLimiter(rate.Every(cfg.RegistrationInterval), cfg.RegistrationBurst),
		Logger:         logger,
		ExpiringWindow: cfg.ExpiringWindowDays,
	})
	handler := membership.NewHandler(svc, notices, gate, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting gymdesk server", "addr", cfg.HTTPAddr, "primary", cfg.Primary)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildGate(cfg config.Config, logger *slog.Logger) (membership.Gate, error) {
	if cfg.AdminPassword == "" {
		logger.Warn("GYMDESK_ADMIN_PASSWORD is not set, the API is open")
		return membership.AllowAll, nil
	}
	hash, err := membership.HashPassword(cfg.AdminPassword)
	if err != nil {
		return nil, err
	}
	return membership.BasicAuthGate(cfg.AdminUser, hash), nil
}

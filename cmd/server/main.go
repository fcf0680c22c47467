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

	"betfair_go/internal/api"
	"betfair_go/internal/app"
	"betfair_go/internal/infra"
	"betfair_go/internal/service"
)

func main() {
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(configPath()); err != nil {
		slog.Error("bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config
	logger := bootstrap.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := api.NewHub(func(r *http.Request) bool { return true })
	parser := service.NewParseService(cfg, bootstrap.Storage, hub, logger)

	metricsSrv := infra.StartMetricsServer(cfg.Metrics.Port, func(ctx context.Context) error {
		return parser.Ping()
	})
	logger.Info("metrics server started", slog.Int("port", cfg.Metrics.Port))

	restAPI := &api.API{
		Service: parser,
		Hub:     hub,
		Name:    cfg.App.Name,
		Version: cfg.App.Version,
		Logger:  logger,
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: restAPI.Router(),
	}

	go func() {
		logger.Info("api server started", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "configs/config.yaml"
}

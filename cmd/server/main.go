package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/foxseedlab/streamscribe/external/config"
	eventsimpl "github.com/foxseedlab/streamscribe/external/events"
	notifyimpl "github.com/foxseedlab/streamscribe/external/notify"
	repositoryimpl "github.com/foxseedlab/streamscribe/external/repository"
	transcriberimpl "github.com/foxseedlab/streamscribe/external/transcriber"
	"github.com/foxseedlab/streamscribe/internal/config"
	"github.com/foxseedlab/streamscribe/internal/events"
	"github.com/foxseedlab/streamscribe/internal/metrics"
	"github.com/foxseedlab/streamscribe/internal/repository"
	"github.com/foxseedlab/streamscribe/internal/server"
	"github.com/foxseedlab/streamscribe/internal/session"
	"github.com/foxseedlab/streamscribe/internal/transcriber"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 30 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded",
		"env", cfg.Env,
		"provider", cfg.TranscriptionProvider,
		"archive", cfg.ArchiveDriver,
		"window_samples", cfg.WindowSamples(),
	)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	run(injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	metrics.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	eventsimpl.RegisterDI(injector)
	notifyimpl.RegisterDI(injector)
	session.RegisterDI(injector)
	server.RegisterDI(injector)

	return injector
}

func run(injector do.Injector) {
	srv, err := do.Invoke[*server.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http server", "error", err)
		os.Exit(1)
	}
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	reaperDone := make(chan struct{})
	go func() {
		manager.RunReaper(reaperCtx)
		close(reaperDone)
	}()

	if err := srv.Start(); err != nil {
		slog.Error("http server start failed", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	stopReaper()
	<-reaperDone

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Ending sessions first closes push streams, which lets their handlers return.
	if err := manager.Shutdown(ctx); err != nil {
		slog.Error("session shutdown incomplete", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	closeResources(injector)
	slog.Info("shutdown complete")
}

func closeResources(injector do.Injector) {
	if repo, err := do.Invoke[repository.Repository](injector); err == nil {
		if err := repo.Close(); err != nil {
			slog.Error("archive close failed", "error", err)
		}
	}
	if publisher, err := do.Invoke[events.Publisher](injector); err == nil {
		if err := publisher.Close(); err != nil {
			slog.Error("event publisher close failed", "error", err)
		}
	}
	if stt, err := do.Invoke[transcriber.Transcriber](injector); err == nil {
		if c, ok := stt.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Error("transcriber close failed", "error", err)
			}
		}
	}
}

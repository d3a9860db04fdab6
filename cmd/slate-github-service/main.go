// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/slate-foundation/slate/lib/clock"
	"github.com/slate-foundation/slate/lib/config"
	"github.com/slate-foundation/slate/lib/process"
	"github.com/slate-foundation/slate/lib/secret"
	"github.com/slate-foundation/slate/lib/service"
	"github.com/slate-foundation/slate/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the slate.yaml config file (defaults to $SLATE_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("slate-github-service %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// This daemon is the webhook receiver; a listener and its HMAC
	// secret are not optional the way they are for the CLI, which
	// loads the same file.
	if cfg.Webhook.Listen == "" {
		return fmt.Errorf("webhook.listen is required")
	}
	if cfg.Webhook.SecretFile == "" {
		return fmt.Errorf("webhook.secret_file is required")
	}

	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	webhookSecret, err := secret.ReadFromPath(cfg.Webhook.SecretFile)
	if err != nil {
		return fmt.Errorf("reading webhook secret: %w", err)
	}
	defer webhookSecret.Close()

	wallClock := clock.Real()

	store, err := OpenStore(StoreConfig{
		Path:   cfg.State.Database,
		Clock:  wallClock,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}()

	archive, err := NewDeliveryArchive(cfg.Webhook.ArchiveKeyFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := archive.Close(); err != nil {
			logger.Error("closing delivery archive", "error", err)
		}
	}()

	resolver, err := NewAccountResolver(store, cfg.GitHub.AccountMapFile, logger)
	if err != nil {
		return err
	}

	clients, err := buildTrackerClients(cfg, wallClock, logger)
	if err != nil {
		return err
	}

	engine, err := NewSyncEngine(SyncEngineConfig{
		Store:          store,
		Clients:        clients,
		Resolver:       resolver,
		Logger:         logger,
		ProjectItemCap: cfg.GitHub.ProjectItemCap,
		PushTimeout:    cfg.PushTimeout(),
	})
	if err != nil {
		return err
	}

	dispatcher := NewDispatcher(DispatcherConfig{
		Engine:    engine,
		QueueSize: cfg.Sync.QueueSize,
		Logger:    logger,
	})

	webhookHandler := NewWebhookHandler(WebhookHandlerConfig{
		Secret:  webhookSecret.Bytes(),
		Store:   store,
		Archive: archive,
		Engine:  engine,
		Notify:  dispatcher.NotifyTaskMutated,
		Clock:   wallClock,
		Logger:  logger,
	})

	httpServer := service.NewHTTPServer(service.HTTPServerConfig{
		Address: cfg.Webhook.Listen,
		Handler: webhookHandler,
		Logger:  logger,
	})

	control := NewControlService(ControlServiceConfig{
		Store:         store,
		Engine:        engine,
		Archive:       archive,
		Resolver:      resolver,
		Clients:       clients,
		WebhookSecret: webhookSecret.Bytes(),
		Clock:         wallClock,
		Logger:        logger,
	})
	socketServer := service.NewSocketServer(cfg.State.Socket, logger)
	control.Register(socketServer)

	dispatcherDone := make(chan error, 1)
	go func() { dispatcherDone <- dispatcher.Run(ctx) }()

	httpDone := make(chan error, 1)
	go func() { httpDone <- httpServer.Serve(ctx) }()

	// Wait for the webhook listener before announcing. A Serve error
	// this early is a startup failure (bad listen address), not a
	// shutdown.
	select {
	case <-httpServer.Ready():
		logger.Info("webhook listener ready", "address", httpServer.Addr().String())
	case err := <-httpDone:
		httpDone = nil
		if err != nil {
			return fmt.Errorf("webhook listener: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	socketDone := make(chan error, 1)
	go func() { socketDone <- socketServer.Serve(ctx) }()

	logger.Info("github sync service running",
		"socket", cfg.State.Socket,
		"webhook_address", cfg.Webhook.Listen,
		"credentials", len(clients),
		"archive_sealed", archive.Sealing(),
		"version", version.Info(),
	)

	// Run until a signal arrives or a server fails outright. Serve
	// returns before shutdown only on failure (a stale socket path,
	// for example); stop() then cancels the context so the healthy
	// servers drain below.
	var runErr error
	select {
	case <-ctx.Done():
	case err := <-httpDone:
		httpDone = nil
		if err != nil {
			runErr = fmt.Errorf("webhook listener: %w", err)
		}
		stop()
	case err := <-socketDone:
		socketDone = nil
		if err != nil {
			runErr = fmt.Errorf("socket server: %w", err)
		}
		stop()
	}

	logger.Info("shutting down")
	if httpDone != nil {
		if err := <-httpDone; err != nil {
			logger.Error("webhook listener error", "error", err)
		}
	}
	if socketDone != nil {
		if err := <-socketDone; err != nil {
			logger.Error("socket server error", "error", err)
		}
	}
	if err := <-dispatcherDone; err != nil {
		logger.Error("dispatcher error", "error", err)
	}

	return runErr
}

// loadConfig loads and validates the service configuration from the
// --config flag, falling back to $SLATE_CONFIG.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

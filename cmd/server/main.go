package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/live-notify/youtube-broadcast-tracker-go/internal/bus"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/config"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/handler"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/hub"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/registry"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/resolver"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/store"
	"github.com/live-notify/youtube-broadcast-tracker-go/internal/tracker"
	"github.com/live-notify/youtube-broadcast-tracker-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	kv, err := store.NewRedis(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer kv.Close()
	logger.Log.Info("redis connection established")

	publisher, err := bus.NewRabbitMQ(&cfg.RabbitMQ)
	if err != nil {
		logger.Log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer publisher.Close()

	var (
		reg       registry.Registry
		regWriter handler.RegistryWriter
	)
	if cfg.Registry.DatabaseURL != "" {
		pool, err := registry.Connect(ctx, cfg.Registry.DatabaseURL)
		if err != nil {
			logger.Log.Fatal("failed to connect registry database", zap.Error(err))
		}
		defer pool.Close()

		pg := registry.NewPostgres(pool)
		if err := pg.Migrate(ctx); err != nil {
			logger.Log.Fatal("failed to migrate registry schema", zap.Error(err))
		}
		reg, regWriter = pg, pg
		logger.Log.Info("registry database connection established")
	} else {
		mem := registry.NewMemory()
		reg, regWriter = mem, mem
		logger.Log.Warn("no registry database configured, using in-memory registry")
	}

	res, err := resolver.New(ctx, cfg.YouTube.APIKeys)
	if err != nil {
		logger.Log.Fatal("failed to create YouTube resolver", zap.Error(err))
	}

	hubClient := hub.NewClient(nil, cfg.Hub.URL, cfg.Hub.CallbackURL, cfg.Hub.LeaseSeconds)

	trk := tracker.New(tracker.Deps{
		Resolver: res,
		Hub:      hubClient,
		Bus:      publisher,
		Registry: reg,
		Store:    kv,
		Events:   cfg.Events,
	})

	if err := trk.Restore(ctx); err != nil {
		logger.Log.Error("state restore failed, starting empty", zap.Error(err))
	}

	runner := tracker.NewRunner(trk, cfg.Tracker)

	router := handler.NewRouter(trk, regWriter)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Log.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("callback_url", cfg.Hub.CallbackURL),
		)
		serverErrors <- server.ListenAndServe()
	}()

	// Background loops start after the listener so the hub's verification
	// handshake for the deferred initial subscribe can be answered.
	runner.Start()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Log.Fatal("server error", zap.Error(err))
	case sig := <-shutdown:
		logger.Log.Info("shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		runner.Stop(shutdownCtx)

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("graceful shutdown failed", zap.Error(err))
			_ = server.Close()
			os.Exit(1)
		}

		logger.Log.Info("server stopped gracefully")
	}
}

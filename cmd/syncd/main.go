package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"editorial_sync/internal/config"
	"editorial_sync/internal/publisher"
	"editorial_sync/internal/scheduler"
	"editorial_sync/internal/server"
	"editorial_sync/internal/service"
	"editorial_sync/internal/source/wordpress"
	"editorial_sync/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	articleStore := postgres.NewArticleStore(db)
	authorStore := postgres.NewAuthorStore(db)
	operationStore := postgres.NewSyncOperationStore(db)
	txManager := postgres.NewTransactionManager(db)

	location, err := time.LoadLocation(cfg.WordPress.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "timezone", cfg.WordPress.Timezone, "error", err)
		os.Exit(1)
	}

	// Missing credentials are tolerated at startup: the API stays up and
	// rejects sync requests until the source is configured.
	var source service.Source
	wp, err := wordpress.New(wordpress.Config{
		BaseURL:        cfg.WordPress.BaseURL,
		Username:       cfg.WordPress.Username,
		AppPassword:    cfg.WordPress.AppPassword,
		PageSize:       cfg.WordPress.PageSize,
		Timeout:        cfg.WordPress.Timeout,
		MaxAttempts:    cfg.WordPress.Retry.MaxAttempts,
		InitialBackoff: cfg.WordPress.Retry.InitialBackoff,
		MaxBackoff:     cfg.WordPress.Retry.MaxBackoff,
	}, logger)
	switch {
	case err == nil:
		source = wp
	case errors.Is(err, wordpress.ErrNotConfigured):
		logger.Warn("wordpress source not configured, sync requests will be rejected")
	default:
		logger.Error("failed to create wordpress client", "error", err)
		os.Exit(1)
	}

	syncService := service.NewSyncService(
		source,
		articleStore,
		authorStore,
		operationStore,
		txManager,
		rabbitMQ,
		logger,
		service.Config{
			MergeSimilarityThreshold: cfg.Sync.MergeSimilarity,
			MergeMaxDayDelta:         cfg.Sync.MergeMaxDayDelta,
			SearchMatchThreshold:     cfg.Sync.SearchMatch,
			CancelCheckInterval:      cfg.Sync.CancelCheckInterval,
			ExcerptLength:            cfg.Sync.ExcerptLength,
			ChunkWords:               cfg.Sync.ChunkWords,
			Location:                 location,
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if cfg.Sync.ScheduleEnabled && source != nil {
		sched := scheduler.NewScheduler(syncService, cfg.Sync.Interval, scheduler.ImportOptions(cfg.Sync.MaxArticles, cfg.Sync.APIDelayMS), logger)
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler error", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: server.New(syncService, articleStore, operationStore, logger).Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "error", err)
		}
	}()

	logger.Info("starting editorial sync service", "addr", cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

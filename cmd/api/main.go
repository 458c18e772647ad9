package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pricescout/pricescout/internal/api"
	"github.com/pricescout/pricescout/internal/auth"
	"github.com/pricescout/pricescout/internal/browser"
	"github.com/pricescout/pricescout/internal/catalog"
	"github.com/pricescout/pricescout/internal/config"
	"github.com/pricescout/pricescout/internal/engine"
	"github.com/pricescout/pricescout/internal/events"
	"github.com/pricescout/pricescout/internal/fetch"
	"github.com/pricescout/pricescout/internal/ratelimit"
	"github.com/pricescout/pricescout/internal/scheduler"
	"github.com/pricescout/pricescout/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat, err := loadCatalog(cfg.Engine.CatalogPath)
	if err != nil {
		logger.Error("failed to load selector catalog", "error", err)
		os.Exit(1)
	}

	db, err := store.New(ctx, store.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.DBName,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnLife: cfg.Database.MaxConnLife,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	publisher := events.NewPublisher(redisClient, logger)
	defer publisher.Close()

	browserOpts := browser.DefaultOptions()
	browserOpts.Headless = cfg.Browser.Headless
	browserOpts.Timeout = cfg.Browser.Timeout
	session := browser.NewSession(browserOpts)

	staticFetcher := fetch.NewStatic(fetch.StaticOptions{
		Timeout:   cfg.Fetch.Timeout,
		UserAgent: cfg.Fetch.UserAgent,
		Limiter:   ratelimit.New(cfg.Fetch.RateLimitMin, cfg.Fetch.RateLimitMax),
	})
	browserFetcher := fetch.NewInteractive(session, fetch.InteractiveOptions{
		WaitTimeout:  cfg.Fetch.WaitTimeout,
		PollInterval: cfg.Fetch.PollInterval,
	})

	metrics := engine.NewMetrics()
	eng, err := engine.New(cat, staticFetcher, browserFetcher, engine.Options{
		Workers:     cfg.Engine.Workers,
		MaxPages:    cfg.Engine.MaxPages,
		CacheSize:   cfg.Engine.CacheSize,
		CacheWindow: cfg.Engine.CacheWindow,
		Metrics:     metrics,
	})
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := eng.Shutdown(); err != nil {
			logger.Error("engine shutdown failed", "error", err)
		}
	}()

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(db, eng, publisher, logger, cfg.Scheduler.Interval)
		go func() {
			if err := sched.Start(ctx); err != nil && err != context.Canceled {
				logger.Error("scheduler stopped with error", "error", err)
			}
		}()
	}

	authMgr := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.BcryptCost)
	handlers := api.NewHandlers(eng, db, authMgr, logger)
	router := api.NewRouter(handlers, authMgr, metrics.Registry)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

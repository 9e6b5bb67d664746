package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/k4rnaj1k/finance-tracker/internal/backup"
	"github.com/k4rnaj1k/finance-tracker/internal/config"
	apphttp "github.com/k4rnaj1k/finance-tracker/internal/http"
	"github.com/k4rnaj1k/finance-tracker/internal/ledger"
	"github.com/k4rnaj1k/finance-tracker/internal/period"
	"github.com/k4rnaj1k/finance-tracker/internal/rates"
	"github.com/k4rnaj1k/finance-tracker/internal/storage"
	"github.com/k4rnaj1k/finance-tracker/internal/storage/memory"
	"github.com/k4rnaj1k/finance-tracker/internal/storage/sqlite"
)

func main() {
	// Load .env file for local development (ignore errors elsewhere)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	var store storage.Store
	switch cfg.DataBackend {
	case "memory":
		store = memory.NewSeeded()
		logger.Info("Initialized memory backend", "backend", cfg.DataBackend)
	default:
		repo, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite store", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		store = repo
		logger.Info("Initialized SQLite backend", "backend", cfg.DataBackend, "path", cfg.SQLiteDBPath)
	}
	defer store.Close()

	converter := rates.New(store)
	tracker := period.New(store)
	engine := ledger.New(converter)
	reconciler := backup.New(store)

	// Establish the income period boundary up front so the first
	// dashboard request does not race the lazy default.
	if _, err := tracker.CurrentStart(context.Background()); err != nil {
		logger.Error("Failed to initialize income period", "error", err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, store, converter, tracker, engine, reconciler)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting finance tracker", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

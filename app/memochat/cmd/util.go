package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/cchalm/memochat/internal/checkpoint"
	"github.com/cchalm/memochat/internal/config"
	"github.com/cchalm/memochat/internal/conversation"
	"github.com/cchalm/memochat/internal/telemetry"
)

func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	// Setup graceful shutdown
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		logger.Info("interrupt signal detected, shutting down gracefully")
		cancel()
		<-interrupt
		logger.Error("forcing shutdown")
		os.Exit(1)
	}()

	return ctx, cancel
}

// openStore opens the configured checkpoint store. The returned close function must be called when done.
func openStore() (checkpoint.Store, func() error, error) {
	noClose := func() error { return nil }
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory checkpoint store, threads will not survive this process")
		return checkpoint.NewMemoryStore(), noClose, nil
	case config.StoreFile:
		return checkpoint.NewFileSystemStore(cfg.StorePath), noClose, nil
	case config.StoreSQLite:
		store, err := checkpoint.OpenSQLiteStore(checkpoint.SQLiteConfig{
			Path:   cfg.StorePath,
			Logger: logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// session bundles what every conversational command needs
type session struct {
	service *conversation.Service
	close   func() error
}

// openSession opens the store, starts telemetry and builds a configured conversation service. If requireModel is
// false the service is left unconfigured, which is enough for commands that only read checkpoints.
func openSession(ctx context.Context, requireModel bool) (*session, error) {
	if requireModel {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	} else if err := cfg.ValidateStorage(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	retention, err := conversation.ParseRetention(cfg.HistoryRetention)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.TelemetryEnabled,
		Endpoint: cfg.TelemetryEndpoint,
		Version:  versionInfo.version,
	}, logger)
	if err != nil {
		return nil, errors.Join(err, closeStore())
	}

	service := conversation.NewService(store, conversation.ServiceOptions{
		Logger:          logger,
		Tracer:          tp.Tracer(),
		Retention:       retention,
		RequestTimeout:  cfg.RequestTimeout,
		MaxOutputTokens: cfg.MaxOutputTokens,
	})
	if requireModel {
		if err := service.Configure(cfg.Settings); err != nil {
			return nil, errors.Join(err, tp.Shutdown(ctx), closeStore())
		}
	}

	return &session{
		service: service,
		close: func() error {
			// Flush spans even if the command's context was cancelled
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return errors.Join(tp.Shutdown(shutdownCtx), closeStore())
		},
	}, nil
}

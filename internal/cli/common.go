package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/catalog"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/config"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/exitcode"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/logging"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/metrics"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/storage"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/transfer"
)

// loadConfig reads the environment and installs the configured logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, exitErr(exitcode.ConfigError, fmt.Errorf("load config: %w", err))
	}
	logging.Setup(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level})
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func storageConfig(cfg config.StorageConfig) storage.Config {
	return storage.Config{
		Backend:   cfg.Backend,
		Bucket:    cfg.Bucket,
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
		LocalDir:  cfg.LocalDir,
	}
}

func retryPolicy(cfg config.RetryConfig) transfer.RetryPolicy {
	return transfer.RetryPolicy{MaxAttempts: cfg.Attempts, BaseDelay: cfg.BaseDelay}
}

// openStore opens the object store and checks the bucket is reachable.
func openStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	store, err := storage.NewObjectStore(ctx, storageConfig(cfg))
	if err != nil {
		return nil, exitErr(exitcode.PreconditionError, fmt.Errorf("open storage: %w", err))
	}
	if err := store.CheckBucket(ctx); err != nil {
		store.Close()
		return nil, exitErr(exitcode.PreconditionError, err)
	}
	return store, nil
}

// openCatalog returns the catalog writer. The catalog is optional: without a
// DSN, or when the database cannot be reached, batches are not recorded.
func openCatalog(ctx context.Context, cfg config.CatalogConfig) catalog.Writer {
	w, err := catalog.NewWriter(ctx, catalog.Config{PostgresDSN: cfg.PostgresDSN})
	if err != nil {
		slog.Warn("catalog unavailable, continuing without it", "error", err)
		return catalog.Discard
	}
	return w
}

// startMetrics initialises metrics and serves them when an address is set.
func startMetrics(ctx context.Context, cfg config.MetricsConfig) *metrics.Metrics {
	m := metrics.Init("log_archiver")
	if cfg.Address != "" {
		go func() {
			if err := m.StartServer(ctx, cfg.Address); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
		slog.Info("serving metrics", "address", cfg.Address)
	}
	return m
}

// pushMetrics sends the final batch metrics to the Pushgateway, if configured.
func pushMetrics(m *metrics.Metrics, cfg config.MetricsConfig, variant, instance string) {
	if cfg.Pushgateway == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.Push(ctx, cfg.Pushgateway, variant, instance); err != nil {
		slog.Warn("failed to push metrics", "error", err)
	}
}

// Command bankledger serves the bank ledger over HTTP.
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

	"github.com/prometheus/client_golang/prometheus"

	ledger "github.com/xraph/bankledger"
	"github.com/xraph/bankledger/api"
	audithook "github.com/xraph/bankledger/audit_hook"
	"github.com/xraph/bankledger/config"
	"github.com/xraph/bankledger/observability"
	"github.com/xraph/bankledger/store"
	"github.com/xraph/bankledger/store/memory"
	"github.com/xraph/bankledger/store/mongo"
	"github.com/xraph/bankledger/store/postgres"
	"github.com/xraph/bankledger/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bankledger exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	l := ledger.New(s, ledgerOptions(cfg, logger, prometheus.DefaultRegisterer)...)
	if err := l.Start(ctx); err != nil {
		_ = s.Close()
		return err
	}
	defer func() {
		if err := l.Stop(); err != nil {
			logger.Error("ledger stop failed", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: api.NewRouter(api.NewHandler(l, logger)),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("bankledger listening", "addr", cfg.Addr, "store", cfg.StoreDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// ledgerOptions assembles the engine options and plugins selected by cfg.
func ledgerOptions(cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) []ledger.Option {
	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithPluginTimeout(cfg.PluginTimeout),
		ledger.WithTransferWindow(cfg.TransferWindow),
		ledger.WithPlugin(observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))),
	}
	if cfg.DisableMigrate {
		opts = append(opts, ledger.WithoutMigrate())
	}
	if !cfg.DisableAudit {
		opts = append(opts, ledger.WithPlugin(audithook.New(audithook.NewLogRecorder(logger))))
	}
	return opts
}

// openStore connects the backend named by cfg.StoreDriver.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		return sqlite.Open(cfg.StoreDSN)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.StoreDSN)
	case config.DriverMongo:
		return mongo.Open(ctx, cfg.StoreDSN, cfg.MongoDatabase)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

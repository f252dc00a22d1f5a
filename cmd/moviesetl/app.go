package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"moviesetl/internal/config"
	"moviesetl/internal/logging"
	"moviesetl/internal/metrics"
	"moviesetl/internal/metrics/datadog"
	"moviesetl/internal/metrics/prompush"
	"moviesetl/internal/source"
	"moviesetl/internal/storage"

	// register all backends with the storage factory.
	_ "moviesetl/internal/storage/all"
)

// app holds the resources shared by migrate and verify.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	src    *source.Reader
	dst    storage.Writer
	flush  func()
}

// newApp builds the logger and metrics backend and opens both stores. Close
// must be called on success.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Pretty)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	a := &app{cfg: cfg, logger: logger, flush: func() {}}
	a.flush = setupMetrics(cfg, logger)

	policy, err := storage.ParsePolicy(cfg.Target.Policy)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("%w: %v", errInvalidConfig, err)
	}

	a.src, err = source.Open(ctx, cfg.SQLitePath, source.WithChunkSize(cfg.Runtime.ChunkSize))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.dst, err = storage.New(ctx, storage.Config{
		Kind:      cfg.Target.Kind,
		DSN:       cfg.Target.ConnString(),
		Namespace: cfg.Target.Schema,
		Policy:    policy,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("stores opened",
		zap.String("source", cfg.SQLitePath),
		zap.String("target", cfg.Target.Kind),
		zap.String("schema", cfg.Target.Schema),
		zap.String("policy", string(policy)),
		zap.Int("chunk_size", cfg.Runtime.ChunkSize),
	)
	return a, nil
}

// Close releases the stores, flushes metrics and syncs the logger.
func (a *app) Close() {
	if a.dst != nil {
		a.dst.Close()
	}
	if a.src != nil {
		if err := a.src.Close(); err != nil {
			a.logger.Warn("close source", zap.Error(err))
		}
	}
	a.flush()
	_ = a.logger.Sync()
}

// setupMetrics installs the configured backend and returns its flush
// function. A backend that cannot be created is logged and metrics stay
// disabled.
func setupMetrics(cfg config.Config, logger *zap.Logger) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case "pushgateway":
		b, err = prompush.NewBackend(cfg.Job, cfg.Metrics.PushgatewayURL)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.DatadogAddr,
			Namespace:  "moviesetl.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
	default:
		logger.Debug("metrics disabled", zap.String("backend", cfg.Metrics.Backend))
		return func() {}
	}
	if err != nil {
		logger.Warn("metrics backend unavailable; using nop", zap.String("backend", cfg.Metrics.Backend), zap.Error(err))
		return func() {}
	}

	metrics.SetBackend(b)
	logger.Info("metrics enabled", zap.String("backend", cfg.Metrics.Backend), zap.String("job", cfg.Job))
	return func() {
		if err := metrics.Flush(); err != nil {
			logger.Warn("metrics flush", zap.Error(err))
		}
	}
}

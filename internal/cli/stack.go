package cli

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/switchyard/internal/config"
	"github.com/roach88/switchyard/internal/engine"
	"github.com/roach88/switchyard/internal/eventlog"
	"github.com/roach88/switchyard/internal/metrics"
	"github.com/roach88/switchyard/internal/notify"
	"github.com/roach88/switchyard/internal/store"
)

// stack is the full append path over one database: event log, engine and
// notification dispatcher. serve and emit both run on it.
type stack struct {
	store      *store.Store
	writer     *eventlog.Writer
	dispatcher *notify.Dispatcher
	registry   *prometheus.Registry
	redis      *redis.Client
}

// openStack opens and migrates the database, then wires the engine. With
// a Redis URL configured, notifications are pushed onto the queue list;
// otherwise they are only logged.
func openStack(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stack, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	s := &stack{store: st, registry: prometheus.NewRegistry()}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(s.registry)

	var port notify.Port = notify.LogPort{Logger: logger}
	if cfg.RedisURL != "" {
		client, err := notify.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
		s.redis = client
		port = notify.NewRedisPort(client, cfg.NotifyQueue)
		logger.Info("notifications queued to redis", "key", cfg.NotifyQueue)
	}

	s.dispatcher = notify.NewDispatcher(port,
		notify.WithLogger(logger),
		notify.WithMetrics(m),
		notify.WithBuffer(cfg.NotifyBuffer),
		notify.WithSendTimeout(cfg.SendTimeout),
	)
	s.dispatcher.Start()

	events := eventlog.NewLog(st, nil, nil, m)
	eng := engine.New(st, events, s.dispatcher,
		engine.WithLogger(logger),
		engine.WithMetrics(m),
		engine.WithBrand(cfg.Brand),
		engine.WithDashboardURL(cfg.DashboardURL),
	)
	s.writer = eventlog.NewWriter(events, eng, logger)
	return s, nil
}

// Close drains pending notifications before releasing the queue client
// and the database.
func (s *stack) Close() error {
	s.dispatcher.Close()
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/api/http/handlers"
	"github.com/spec-kit/ticket-lifecycle/internal/config"
	"github.com/spec-kit/ticket-lifecycle/internal/events"
	"github.com/spec-kit/ticket-lifecycle/internal/observability"
	"github.com/spec-kit/ticket-lifecycle/internal/persistence"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	"github.com/spec-kit/ticket-lifecycle/internal/service"
	"github.com/spec-kit/ticket-lifecycle/internal/worker"
)

// application holds the wired service graph for one process.
type application struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	tickets *service.TicketService
	checks  map[string]handlers.DependencyCheck
	closers []func()
}

// newApplication opens the configured store and wires the ticket service,
// its event subscribers and the readiness checks.
func newApplication(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*application, error) {
	app := &application{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		checks:  map[string]handlers.DependencyCheck{},
	}

	repo, err := app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	dispatcher := events.NewInMemoryDispatcher()
	publisher := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
	if publisher.Enabled() {
		logger.Info("publishing ticket events to kafka",
			zap.Strings("brokers", cfg.Events.KafkaBrokers),
			zap.String("topic", cfg.Events.KafkaTopic))
	}
	app.closers = append(app.closers, func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("close kafka publisher", zap.Error(err))
		}
	})
	worker.StartEventSubscribers(service.NewEventSubscriberService(dispatcher, publisher, logger))

	app.tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo: repo,
		Dispatcher: dispatcher,
		Metrics:    app.metrics,
		Logger:     logger,
	})
	return app, nil
}

func (a *application) openStore(ctx context.Context) (repository.TicketRepository, error) {
	switch a.cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, a.cfg.Postgres, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		if a.cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, a.logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		a.checks["postgres"] = pg.Ping
		return repository.NewTicketRepository(pg.Pool), nil
	case config.StoreDriverRedis:
		rdb := persistence.NewRedis(ctx, a.cfg.Redis, a.logger)
		a.closers = append(a.closers, rdb.Close)
		a.checks["redis"] = rdb.Ping
		return repository.NewRedisTicketRepository(rdb.Client, rdb.KeyPrefix), nil
	case config.StoreDriverMemory:
		a.logger.Warn("using in-memory ticket store; data is lost on restart")
		return repository.NewMemoryTicketRepository(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// withApplication loads config, builds the logger and the application, and
// hands them to fn.
func withApplication(ctx context.Context, opts *globalOptions, fn func(*application) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(app)
}

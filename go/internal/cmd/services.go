package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/focusnest/go/internal/gateway"
	"github.com/mcdev12/focusnest/go/internal/metrics"
	"github.com/mcdev12/focusnest/go/internal/pgnotify"
	"github.com/mcdev12/focusnest/go/internal/scheduler"
	"github.com/mcdev12/focusnest/go/internal/session"
	"github.com/mcdev12/focusnest/go/internal/stream"
	"github.com/rs/zerolog/log"
)

const (
	storeMemory    = "memory"
	storePostgres  = "postgres"
	fanoutLocal    = "local"
	fanoutNATS     = "nats"
	fanoutPostgres = "postgres"
)

// Services holds everything the server runs.
type Services struct {
	Sessions    *session.Service
	Connections *gateway.ConnectionManager
	Scheduler   *scheduler.Scheduler
	Sweeper     *scheduler.Sweeper
	Metrics     *metrics.PrometheusCollector

	// background loops started alongside the HTTP server
	runners []func(ctx context.Context) error
	closers []func() error
}

// Run starts every background loop; each stops when ctx is cancelled.
func (s *Services) Run(ctx context.Context) {
	go s.Connections.Start(ctx)
	for _, run := range s.runners {
		go func(run func(context.Context) error) {
			if err := run(ctx); err != nil {
				log.Error().Err(err).Msg("background loop stopped")
			}
		}(run)
	}
}

// Close releases transport and database resources.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Warn().Err(err).Msg("error during shutdown")
		}
	}
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Storage → Hub/fan-out → App layer → Service layer and gateway
	services := &Services{Metrics: metrics.NewPrometheusCollector()}

	storeDriver := getEnv("STORE_DRIVER", storeMemory)
	fanoutDriver := getEnv("FANOUT_DRIVER", fanoutLocal)

	var (
		repo     session.SessionRepository
		database *sql.DB
		dsn      string
	)
	switch storeDriver {
	case storeMemory:
		repo = session.NewMemoryRepository()
	case storePostgres:
		var err error
		database, dsn, err = setupDatabase(ctx)
		if err != nil {
			return nil, err
		}
		services.closers = append(services.closers, database.Close)
		repo = session.NewPostgresRepository(database)
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", storeDriver)
	}

	hub := session.NewHub()
	publisher, err := setupFanout(ctx, services, fanoutDriver, hub, database, dsn)
	if err != nil {
		services.Close()
		return nil, err
	}

	clock := clockwork.NewRealClock()
	app := session.NewApp(repo, hub, publisher,
		session.WithClock(clock),
		session.WithPolicy(config.Policy()),
		session.WithMetrics(services.Metrics, fanoutDriver),
	)
	services.Sessions = session.NewService(app)

	services.Connections = gateway.NewConnectionManager(app, gateway.DefaultConnectionConfig(), services.Metrics)

	workers := config.Scheduler.Workers
	if workers <= 0 {
		workers = getEnvAsInt("SCHEDULER_WORKERS", 4)
	}
	services.Scheduler = scheduler.New(app, clock, workers, services.Metrics)
	unsubscribe := hub.SubscribeAll(services.Scheduler.HandleEvent)
	services.closers = append(services.closers, func() error { unsubscribe(); return nil })

	services.Sweeper = scheduler.NewSweeper(app, clock, config.Scheduler.SweepInterval)
	services.runners = append(services.runners, services.Scheduler.Run, services.Sweeper.Run)

	log.Info().
		Str("store", storeDriver).
		Str("fanout", fanoutDriver).
		Int("scheduler_workers", workers).
		Msg("services configured")
	return services, nil
}

// setupFanout picks how change events reach subscribers. Remote drivers feed
// what they receive back into the local hub, so every instance notifies its
// own subscribers.
func setupFanout(ctx context.Context, services *Services, driver string, hub *session.Hub, database *sql.DB, dsn string) (session.Publisher, error) {
	switch driver {
	case fanoutLocal:
		return hub, nil

	case fanoutNATS:
		cfg := stream.DefaultJetStreamConfig()
		cfg.URL = getEnv("NATS_URL", cfg.URL)

		publisher, err := stream.NewJetStreamPublisher(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
		}
		services.closers = append(services.closers, publisher.Close)

		consumer, err := stream.NewEventConsumer(ctx, hub, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream consumer: %w", err)
		}
		services.closers = append(services.closers, consumer.Stop)
		services.runners = append(services.runners, consumer.Start)
		return publisher, nil

	case fanoutPostgres:
		if database == nil {
			return nil, fmt.Errorf("FANOUT_DRIVER=postgres requires STORE_DRIVER=postgres")
		}
		cfg := pgnotify.DefaultListenerConfig()
		cfg.DatabaseURL = dsn
		cfg.NotifyChannel = getEnv("NOTIFY_CHANNEL", cfg.NotifyChannel)

		listener, err := pgnotify.NewListener(hub, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create notify listener: %w", err)
		}
		services.runners = append(services.runners, listener.Start)
		return pgnotify.NewPublisher(database, cfg.NotifyChannel), nil

	default:
		return nil, fmt.Errorf("unknown FANOUT_DRIVER %q", driver)
	}
}

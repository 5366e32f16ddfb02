package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/cache/rediscache"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/natsbus"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/recordstore/memory"
	"budgetbuddy/internal/recordstore/postgres"
	"budgetbuddy/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// Create implements Factory.Create. On error every resource opened so far is
// released.
func (f *DefaultFactory) Create(ctx context.Context, config Config) (result *Result, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var closers []func() error
	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	defer func() {
		if err != nil {
			if cerr := cleanup(); cerr != nil {
				f.logger.Warn("Cleanup after failed backend creation", log.FieldError, cerr)
			}
		}
	}()

	result = &Result{}

	switch config.Records {
	case PostgresRecords:
		store, err := postgres.Open(ctx, postgres.Config{
			URL:            config.DatabaseURL,
			ConnectRetries: 5,
			RetryDelay:     2 * time.Second,
			Migrate:        true,
		}, f.logger.WithComponent(log.ComponentRecords))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize postgres record store: %w", err)
		}
		closers = append(closers, store.Close)
		result.Records = store
		f.logger.Info("Initialized postgres record store")
	default:
		store, err := memory.NewFromFile(config.SeedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize memory record store: %w", err)
		}
		result.Records = store
		f.logger.Info("Initialized memory record store", "seed_file", config.SeedFile)
	}

	switch config.Cache {
	case SQLiteCache:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite cache: %w", err)
		}
		closers = append(closers, repo.Close)
		result.DashboardStore = repo
		result.SyncStore = repo
		f.logger.Info("Initialized SQLite cache", "db_path", config.SQLiteDBPath)
	case RedisCache:
		client, err := rediscache.Dial(ctx, config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis cache: %w", err)
		}
		closers = append(closers, client.Close)
		store := rediscache.New(client, rediscache.DefaultPrefix)
		result.DashboardStore = store
		result.SyncStore = store
		f.logger.Info("Initialized Redis cache")
	default:
		result.DashboardStore = cache.NewMemoryStore(config.CacheMaxEntries)
		result.SyncStore = cache.NewMemoryStore(0)
		f.logger.Info("Initialized memory cache", "max_entries", config.CacheMaxEntries)
	}

	switch config.Notify {
	case AMQPNotify:
		// Sinks are optional: a broker that is down must not keep the app from starting.
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue,
			f.logger.WithComponent(log.ComponentAMQP))
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without event sink", log.FieldError, err)
		} else {
			closers = append(closers, client.Close)
			result.Sinks = append(result.Sinks, client)
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	case NATSNotify:
		client, err := natsbus.Connect(config.NATSURL, config.NATSSubject,
			f.logger.WithComponent(log.ComponentNATS))
		if err != nil {
			f.logger.Warn("Failed to initialize NATS client, continuing without event sink", log.FieldError, err)
		} else {
			closers = append(closers, client.Close)
			result.Sinks = append(result.Sinks, client)
			f.logger.Info("Initialized NATS client", "subject", config.NATSSubject)
		}
	}

	result.Cleanup = cleanup
	return result, nil
}

// Listen consumes events from the configured broker until ctx is cancelled.
func Listen(ctx context.Context, config Config, logger *log.Logger, handler func(notify.Event)) error {
	if logger == nil {
		logger = log.Default(log.ComponentBackend)
	}
	switch config.Notify {
	case AMQPNotify:
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue,
			logger.WithComponent(log.ComponentAMQP))
		if err != nil {
			return fmt.Errorf("connect to AMQP: %w", err)
		}
		defer client.Close()
		return client.ConsumeEvents(ctx, func(e notify.Event) error {
			handler(e)
			return nil
		})
	case NATSNotify:
		client, err := natsbus.Connect(config.NATSURL, config.NATSSubject,
			logger.WithComponent(log.ComponentNATS))
		if err != nil {
			return err
		}
		defer client.Close()
		return client.Subscribe(ctx, handler)
	default:
		return fmt.Errorf("no event broker configured (notify backend %q)", config.Notify)
	}
}

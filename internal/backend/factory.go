package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"carbontracker/internal/adapters"
	"carbontracker/internal/amqp"
	"carbontracker/internal/records/api"
	"carbontracker/internal/records/memory"
	"carbontracker/internal/services"
	"carbontracker/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case APIBackend:
		return f.createAPIBackend(ctx, config)
	case OutboxBackend:
		return f.createOutboxBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// NewRecordsClient builds the purchase API client shared by the backends, the
// worker and the CLI.
func NewRecordsClient(config Config) (*api.Client, error) {
	var opts []api.Option
	if config.RequestTimeout > 0 {
		opts = append(opts, api.WithHTTPClient(&http.Client{Timeout: config.RequestTimeout}))
	}
	client, err := api.New(config.RecordsAPIURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize records API client: %w", err)
	}
	return client, nil
}

func (f *DefaultFactory) createAPIBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := NewRecordsClient(config)
	if err != nil {
		return nil, err
	}

	f.logger.InfoContext(ctx, "Initialized records API backend", "url", config.RecordsAPIURL)

	return &BackendResult{Store: client}, nil
}

func (f *DefaultFactory) createOutboxBackend(ctx context.Context, config Config) (*BackendResult, error) {
	remote, err := NewRecordsClient(config)
	if err != nil {
		return nil, err
	}

	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// Initialize AMQP client (optional)
	var publisher services.SyncPublisher
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, "")
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, relying on the worker sweep", "error", err)
		} else {
			publisher = amqpClient
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	service := services.NewPurchaseService(sqliteRepo, publisher)
	store := adapters.NewOutboxStore(remote, sqliteRepo, service)

	f.logger.InfoContext(ctx, "Initialized outbox backend",
		"db_path", config.SQLiteDBPath,
		"records_url", config.RecordsAPIURL,
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Store:   store,
		Ready:   sqliteRepo.Ping,
		Cleanup: service.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) (*BackendResult, error) {
	f.logger.InfoContext(ctx, "Initialized memory backend")
	return &BackendResult{Store: memory.New()}, nil
}

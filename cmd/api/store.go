package main

import (
	"context"
	"fmt"

	"github.com/printflow/job-lifecycle/internal/domain"
	"github.com/printflow/job-lifecycle/internal/infrastructure/events"
	mongoRepo "github.com/printflow/job-lifecycle/internal/infrastructure/mongodb"
	"github.com/printflow/job-lifecycle/internal/infrastructure/sqlite"
	"github.com/printflow/job-lifecycle/pkg/logging"
	"github.com/printflow/job-lifecycle/pkg/metrics"
	"github.com/printflow/job-lifecycle/pkg/mongodb"
	"github.com/printflow/job-lifecycle/pkg/outbox"
	outboxMongo "github.com/printflow/job-lifecycle/pkg/outbox/mongodb"
)

// backend bundles the repositories of one store
type backend struct {
	jobs   domain.JobRepository
	ledger domain.AssignmentLedger
	outbox outbox.Repository
	health func(ctx context.Context) error
	close  func(ctx context.Context) error
}

func openBackend(ctx context.Context, cfg *Config, envelopes *events.EnvelopeBuilder, m *metrics.Metrics, logger *logging.Logger) (*backend, error) {
	switch cfg.StoreBackend {
	case backendSQLite:
		return openSQLite(ctx, cfg, envelopes, logger)
	default:
		return openMongo(ctx, cfg, envelopes, m, logger)
	}
}

func openMongo(ctx context.Context, cfg *Config, envelopes *events.EnvelopeBuilder, m *metrics.Metrics, logger *logging.Logger) (*backend, error) {
	client, err := mongodb.NewProductionClient(ctx, cfg.MongoDB, m, logger)
	if err != nil {
		return nil, err
	}

	jobs := mongoRepo.NewJobRepository(client, envelopes)
	ledger := mongoRepo.NewAssignmentLedger(client, envelopes)
	if err := jobs.EnsureIndexes(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("failed to create job indexes: %w", err)
	}
	if err := ledger.EnsureIndexes(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, fmt.Errorf("failed to create ledger indexes: %w", err)
	}
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB.Database)

	return &backend{
		jobs:   jobs,
		ledger: ledger,
		outbox: outboxMongo.NewOutboxRepository(client.Database()),
		health: client.HealthCheck,
		close:  client.Close,
	}, nil
}

func openSQLite(ctx context.Context, cfg *Config, envelopes *events.EnvelopeBuilder, logger *logging.Logger) (*backend, error) {
	store, err := sqlite.Open(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	logger.Info("Opened SQLite store", "path", store.Path())

	return &backend{
		jobs:   sqlite.NewJobRepository(store, envelopes),
		ledger: sqlite.NewAssignmentLedger(store, envelopes),
		outbox: sqlite.NewOutboxRepository(store),
		health: store.HealthCheck,
		close:  func(context.Context) error { return store.Close() },
	}, nil
}

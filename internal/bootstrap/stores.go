// Package bootstrap assembles the stores and background workers shared by
// the api and worker binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jwalitptl/hospital-api/internal/config"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/internal/repository/inmemory"
	"github.com/jwalitptl/hospital-api/internal/repository/mongo"
	"github.com/jwalitptl/hospital-api/internal/repository/postgres"
	"github.com/jwalitptl/hospital-api/pkg/logger"
)

// Stores holds the repositories of the configured driver.
type Stores struct {
	Driver   string
	Codes    repository.AccessCodeRepository
	Subjects repository.SubjectRepository
	Outbox   repository.OutboxRepository
	// Checks are pinged by the readiness probe.
	Checks map[string]repository.Pinger

	closers []func() error
}

// Close releases every connection opened by OpenStores.
func (s *Stores) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// OpenStores connects to the backend named by cfg.Store.Driver.
func OpenStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Stores, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return openPostgres(ctx, cfg, log)
	case "mongo":
		return openMongo(ctx, cfg, log)
	case "memory":
		log.Warn("Using in-memory store; data is lost on restart")
		return openMemory(), nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}

func openPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Stores, error) {
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Store.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("Database schema is up to date")
	}

	base := postgres.NewBaseRepository(db)
	return &Stores{
		Driver:   "postgres",
		Codes:    postgres.NewAccessCodeRepository(base),
		Subjects: postgres.NewSubjectRepository(base),
		Outbox:   postgres.NewOutboxRepository(base),
		Checks:   map[string]repository.Pinger{"postgres": &base},
		closers:  []func() error{db.Close},
	}, nil
}

func openMongo(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Stores, error) {
	client, db, err := mongo.Connect(ctx, cfg.Mongo)
	if err != nil {
		return nil, err
	}
	disconnect := func() error { return client.Disconnect(context.Background()) }

	if cfg.Store.Migrate {
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			_ = disconnect()
			return nil, err
		}
		log.Info("Mongo indexes are up to date", "database", cfg.Mongo.Database)
	}

	return &Stores{
		Driver:   "mongo",
		Codes:    mongo.NewAccessCodeRepository(db),
		Subjects: mongo.NewSubjectRepository(db),
		Outbox:   mongo.NewOutboxRepository(db),
		Checks:   map[string]repository.Pinger{"mongo": mongo.Pinger{Client: client}},
		closers:  []func() error{disconnect},
	}, nil
}

func openMemory() *Stores {
	store := inmemory.NewStore()
	return &Stores{
		Driver:   "memory",
		Codes:    store,
		Subjects: store,
		Outbox:   inmemory.NewOutbox(),
		Checks:   map[string]repository.Pinger{"memory": store},
	}
}

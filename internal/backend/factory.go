package backend

import (
	"context"
	"fmt"

	"expensebot/internal/log"
	"expensebot/internal/storage"
)

type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &Result{Repository: repo, Cleanup: repo.Close}, nil

	case PostgresBackend:
		repo, err := storage.NewPostgresRepository(ctx, config.PostgresDSN, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
		return &Result{Repository: repo, Cleanup: repo.Close}, nil

	case MemoryBackend:
		f.logger.Warn("Using in-memory backend, data is lost on restart")
		repo := storage.NewMemoryRepository()
		return &Result{Repository: repo, Cleanup: repo.Close}, nil
	}
	return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
}

func (f *DefaultFactory) Migrate(_ context.Context, config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	switch config.Type {
	case SQLiteBackend:
		if err := storage.RunMigrations(config.SQLiteDBPath); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	case PostgresBackend:
		if err := storage.RunPostgresMigrations(config.PostgresDSN); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	case MemoryBackend:
		f.logger.Info("Memory backend has no schema to migrate")
		return nil
	}
	f.logger.Info("Migrations applied", "backend", config.Type.String())
	return nil
}

// Package backend builds the storage repository selected by configuration.
package backend

import (
	"context"

	"expensebot/internal/storage"
)

type CleanupFunc func() error

// Result carries the repository and the function releasing its resources.
type Result struct {
	Repository storage.Repository
	Cleanup    CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
	// Migrate applies schema migrations without opening a repository.
	Migrate(ctx context.Context, config Config) error
}

type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string
}

type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

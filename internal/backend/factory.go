package backend

import (
	"context"
	"fmt"
	"log/slog"

	"dompet/internal/storage"
	"dompet/internal/storage/memory"
)

// Open creates the backend described by config and checks it is reachable.
func Open(ctx context.Context, config Config, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		b   Backend
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		b, err = storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		logger.Info("Initialized SQLite backend", "component", "backend", "db_path", config.SQLiteDBPath)
	case PostgresBackend:
		b, err = storage.NewPostgresRepository(config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		logger.Info("Initialized Postgres backend", "component", "backend")
	case MemoryBackend:
		b = memory.New()
		logger.Warn("Using in-memory backend, data is lost on restart", "component", "backend")
	}

	if err := b.Ping(ctx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("backend %s unreachable: %w", config.Type, err)
	}
	return b, nil
}

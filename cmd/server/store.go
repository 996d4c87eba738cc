package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/csvingest/internal/config"
	"github.com/JonMunkholm/csvingest/internal/core"
	"github.com/JonMunkholm/csvingest/internal/database"
	"github.com/JonMunkholm/csvingest/internal/database/duckdb"
	"github.com/JonMunkholm/csvingest/internal/database/memory"
)

// openStore selects the persistence backend. With the postgres driver an
// empty or unreachable DATABASE_URL falls back to the DuckDB file when
// fallback is enabled.
func openStore(ctx context.Context, cfg *config.DatabaseConfig) (core.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		slog.Warn("using in-memory store; uploads are lost on restart")
		return memory.New(), nil

	case config.DriverDuckDB:
		return openDuckDB(ctx, cfg.FallbackPath)

	case config.DriverPostgres:
		if cfg.URL == "" {
			if !cfg.FallbackEnabled {
				return nil, fmt.Errorf("DATABASE_URL is not set")
			}
			slog.Info("DATABASE_URL not set, using DuckDB fallback", "path", cfg.FallbackPath)
			return openDuckDB(ctx, cfg.FallbackPath)
		}

		store, err := openPostgres(ctx, cfg)
		if err == nil {
			return store, nil
		}
		if !cfg.FallbackEnabled {
			return nil, err
		}
		slog.Warn("postgres unavailable, using DuckDB fallback",
			"error", err,
			"host", cfg.DatabaseHost(),
			"path", cfg.FallbackPath,
		)
		return openDuckDB(ctx, cfg.FallbackPath)
	}

	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func openPostgres(ctx context.Context, cfg *config.DatabaseConfig) (*database.Store, error) {
	store, err := database.Open(ctx, database.PoolConfig{
		URL:               cfg.URL,
		MaxConns:          cfg.MaxConns,
		MinConns:          cfg.MinConns,
		MaxConnLifetime:   cfg.MaxConnLifetime,
		MaxConnIdleTime:   cfg.MaxConnIdleTime,
		HealthCheckPeriod: cfg.HealthCheckPeriod,
		ConnectTimeout:    cfg.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("connected to database", "driver", config.DriverPostgres, "host", cfg.DatabaseHost())
	return store, nil
}

func openDuckDB(ctx context.Context, path string) (*duckdb.Store, error) {
	store, err := duckdb.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	slog.Info("connected to database", "driver", config.DriverDuckDB, "file", path)
	return store, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quillpress/quillpress/internal/account"
	"github.com/quillpress/quillpress/internal/account/postgres"
	"github.com/quillpress/quillpress/internal/avatar"
	"github.com/quillpress/quillpress/internal/config"
	"github.com/quillpress/quillpress/internal/observability"
	"github.com/quillpress/quillpress/internal/store"
)

// Deps contains injectable dependencies for the CLI commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// PoolFactory opens a database pool.
	// Default: store.Connect
	PoolFactory func(ctx context.Context, url string, logger *slog.Logger) (Pool, error)

	// RepositoryFactory builds the account repository over a pool.
	// Default: postgres.NewAccountRepository
	RepositoryFactory func(pool Pool) account.Repository

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// Seeder writes role and permission fixtures.
	// Default: store.Seed
	Seeder func(ctx context.Context, pool Pool, fixtures *store.Fixtures) (store.SeedResult, error)

	// AvatarFactory builds the registration avatar lookup. A nil result disables it.
	// Default: avatar.NewGravatar when avatar.enabled is set
	AvatarFactory func(cfg config.AvatarConfig) account.AvatarLookup

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer with account and build metrics
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// Clock returns the current time for reset token issue and expiry.
	// Default: time.Now
	Clock func() time.Time
}

// Pool wraps the methods used from *pgxpool.Pool.
type Pool interface {
	postgres.DB
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

func (d *Deps) withDefaults() *Deps {
	out := *d
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, url string, logger *slog.Logger) (Pool, error) {
			pool, err := store.Connect(ctx, url, logger)
			if err != nil {
				return nil, err //nolint:wrapcheck // store errors are already coded
			}
			return pool, nil
		}
	}
	if out.RepositoryFactory == nil {
		out.RepositoryFactory = func(pool Pool) account.Repository {
			return postgres.NewAccountRepository(pool)
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(url string) (Migrator, error) {
			m, err := store.NewMigrator(url)
			if err != nil {
				return nil, err //nolint:wrapcheck // store errors are already coded
			}
			return m, nil
		}
	}
	if out.Seeder == nil {
		out.Seeder = func(ctx context.Context, pool Pool, fixtures *store.Fixtures) (store.SeedResult, error) {
			return store.Seed(ctx, pool, fixtures)
		}
	}
	if out.AvatarFactory == nil {
		out.AvatarFactory = func(cfg config.AvatarConfig) account.AvatarLookup {
			if !cfg.Enabled {
				return nil
			}
			return avatar.NewGravatar(cfg.Timeout, avatar.WithBaseURL(cfg.BaseURL))
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			srv := observability.NewServer(addr, readinessChecker, account.RegisterMetrics)
			srv.Metrics().BuildInfo.WithLabelValues(version, commit).Set(1)
			return srv
		}
	}
	if out.Clock == nil {
		out.Clock = time.Now
	}
	return &out
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package main

import (
	"context"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/quillpress/quillpress/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout  time.Duration
	fixtures string
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd(deps *Deps) *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed roles and permissions",
		Long: `Creates the roles and permissions accounts are granted, by default
Administrator, Editor and Author with the post permissions of Administrator.
This command is idempotent - running it again updates rows in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg, deps)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().StringVar(&cfg.fixtures, "fixtures", "", "YAML fixtures file (defaults to the built-in roles)")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, cfg *seedConfig, deps *Deps) error {
	fixtures, err := loadFixtures(cfg.fixtures)
	if err != nil {
		return err
	}

	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := conf.RequireDatabase(); err != nil {
		return err //nolint:wrapcheck // already coded
	}
	logger := newLogger(cmd, conf)

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := deps.PoolFactory(ctx, conf.Database.URL, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	result, err := deps.Seeder(ctx, pool, fixtures)
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "seed fixtures").Wrap(err)
	}

	cmd.Printf("Seeded %d roles, %d permissions, %d grants\n", result.Roles, result.Permissions, result.Grants)
	logger.InfoContext(ctx, "fixtures seeded",
		"roles", result.Roles,
		"permissions", result.Permissions,
		"grants", result.Grants)
	return nil
}

func loadFixtures(path string) (*store.Fixtures, error) {
	if path == "" {
		//nolint:wrapcheck // fixture errors are already coded
		return store.DefaultFixtures()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("FIXTURE_INVALID").With("path", path).Wrap(err)
	}
	//nolint:wrapcheck // fixture errors are already coded
	return store.ParseFixtures(data)
}

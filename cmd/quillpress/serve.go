// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/quillpress/quillpress/internal/observability"
)

// Probe and shutdown timeouts for the serve command.
const (
	readinessTimeout = 2 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve metrics and health probes",
		Long: `Serve Prometheus metrics and Kubernetes-style health probes. Readiness
follows the database connection.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, deps)
		},
	}

	cmd.Flags().String("metrics-addr", "", "metrics and health listen address (overrides metrics.addr)")

	return cmd
}

func runServe(cmd *cobra.Command, deps *Deps) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err //nolint:wrapcheck // already coded
	}
	logger := newLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := deps.PoolFactory(ctx, cfg.Database.URL, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	server := deps.ObservabilityServerFactory(cfg.Metrics.Addr, observability.PingReadiness(pool, readinessTimeout))
	errCh, err := server.Start()
	if err != nil {
		return oops.Code("SERVER_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
	}
	logger.InfoContext(ctx, "serving metrics and health probes", "addr", server.Addr())

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err, ok := <-errCh:
		if ok && err != nil {
			serveErr = oops.Code("SERVER_FAILED").With("addr", server.Addr()).Wrap(err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil && serveErr == nil {
		serveErr = oops.Code("SERVER_STOP_FAILED").Wrap(err)
	}

	logger.Info("shutdown complete")
	return serveErr
}

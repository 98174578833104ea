// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/quillpress/quillpress/internal/config"
	"github.com/quillpress/quillpress/internal/logging"
	"github.com/quillpress/quillpress/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the QuillPress CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&Deps{})
}

func newRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "quillpress",
		Short: "QuillPress - account security tooling",
		Long: `QuillPress manages the accounts of a self-hosted publishing platform:
schema migrations, role fixtures, registration, login lockout,
password resets and permission lookups.`,
		SilenceUsage: true,
	}

	// Config file path; defaults to $XDG_CONFIG_HOME/quillpress/config.yaml when present.
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL (overrides database.url)")
	cmd.PersistentFlags().String("log-format", "json", "log format: json or text (overrides log.format)")

	cmd.AddCommand(NewMigrateCmd(deps))
	cmd.AddCommand(NewSeedCmd(deps))
	cmd.AddCommand(NewAccountCmd(deps))
	cmd.AddCommand(NewServeCmd(deps))

	return cmd
}

// loadConfig resolves the config file and applies the command's flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		if p, ok := xdg.DefaultConfigFile(); ok {
			path = p
		}
	}
	//nolint:wrapcheck // config errors are already coded
	return config.Load(path, cmd.Flags())
}

// newLogger builds the command logger. Logs go to stderr so stdout stays parseable.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.Setup("quillpress", version, cfg.Log.Format, cmd.ErrOrStderr())
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

// Package config loads QuillPress settings from a YAML file, command line
// flags and environment fallbacks.
//
// Precedence, highest first: explicitly set flags, the config file, the
// DATABASE_URL and QUILLPRESS_RESET_SECRET environment variables, defaults.
package config

import (
	"os"
	"slices"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/quillpress/quillpress/internal/account"
	"github.com/quillpress/quillpress/internal/avatar"
)

// Environment fallbacks.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvResetSecret = "QUILLPRESS_RESET_SECRET"
)

// Config is the full QuillPress configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	Avatar   AvatarConfig   `koanf:"avatar"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format"`
}

// AuthConfig configures password hashing, resets and registration.
type AuthConfig struct {
	PasswordAlgorithm string        `koanf:"password_algorithm"`
	BcryptCost        int           `koanf:"bcrypt_cost"`
	ResetTTL          time.Duration `koanf:"reset_ttl"`
	ResetSecret       string        `koanf:"reset_secret"`
	AdminRole         string        `koanf:"admin_role"`
}

// AvatarConfig configures the Gravatar lookup done on registration.
type AvatarConfig struct {
	Enabled bool          `koanf:"enabled"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// MetricsConfig configures the observability endpoint.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Log: LogConfig{Format: "json"},
		Auth: AuthConfig{
			PasswordAlgorithm: string(account.AlgorithmBcrypt),
			BcryptCost:        account.DefaultBcryptCost,
			ResetTTL:          account.DefaultResetTokenTTL,
			AdminRole:         account.DefaultAdminRole,
		},
		Avatar: AvatarConfig{
			Enabled: true,
			BaseURL: avatar.DefaultBaseURL,
			Timeout: avatar.DefaultTimeout,
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9100"},
	}
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"database-url": "database.url",
	"log-format":   "log.format",
	"metrics-addr": "metrics.addr",
}

// Load reads the config file at path (skipped when empty), applies flags that
// were set explicitly and fills unset secrets from the environment.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").
				With("operation", "read config file").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", nil, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("operation", "read flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv(EnvDatabaseURL)
	}
	if cfg.Auth.ResetSecret == "" {
		cfg.Auth.ResetSecret = os.Getenv(EnvResetSecret)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that do not depend on which command runs.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return oops.Code("CONFIG_INVALID").With("log.format", c.Log.Format).
			Errorf("log format must be json or text")
	}
	switch account.Algorithm(c.Auth.PasswordAlgorithm) {
	case account.AlgorithmBcrypt, account.AlgorithmArgon2id:
	default:
		return oops.Code("CONFIG_INVALID").With("auth.password_algorithm", c.Auth.PasswordAlgorithm).
			Errorf("password algorithm must be bcrypt or argon2id")
	}
	if c.Auth.ResetTTL <= 0 {
		return oops.Code("CONFIG_INVALID").With("auth.reset_ttl", c.Auth.ResetTTL.String()).
			Errorf("reset token ttl must be positive")
	}
	if c.Auth.AdminRole == "" {
		return oops.Code("CONFIG_INVALID").Errorf("admin role is required")
	}
	if c.Avatar.Enabled && c.Avatar.Timeout <= 0 {
		return oops.Code("CONFIG_INVALID").With("avatar.timeout", c.Avatar.Timeout.String()).
			Errorf("avatar timeout must be positive")
	}
	return nil
}

// RequireDatabase returns an error when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("database url is required (set database.url, --database-url or %s)", EnvDatabaseURL)
	}
	return nil
}

// RequireResetSecret returns an error when no reset token secret is configured.
func (c *Config) RequireResetSecret() error {
	if c.Auth.ResetSecret == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("reset secret is required (set auth.reset_secret or %s)", EnvResetSecret)
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillpress/quillpress/internal/account"
	"github.com/quillpress/quillpress/internal/account/accounttest"
	"github.com/quillpress/quillpress/internal/config"
)

// fakePool satisfies Pool for commands whose repository is replaced.
// Query methods are left to the embedded nil interface and panic if used.
type fakePool struct {
	Pool
	closed  atomic.Bool
	pingErr error
}

func (p *fakePool) Close() { p.closed.Store(true) }

func (p *fakePool) Ping(context.Context) error { return p.pingErr }

// harness runs the root command against an in-memory account repository.
type harness struct {
	repo *accounttest.MemoryRepository
	pool *fakePool
	deps *Deps
	now  time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.EnvDatabaseURL, "postgres://quillpress@localhost/quillpress")
	t.Setenv(config.EnvResetSecret, "test-reset-secret")

	repo := accounttest.NewMemoryRepository()
	repo.AddRole(account.DefaultAdminRole,
		account.Permission{Name: "Edit posts", ActionType: "edit", ObjectType: "post"},
		account.Permission{Name: "Remove posts", ActionType: "remove", ObjectType: "post"},
	)

	h := &harness{
		repo: repo,
		pool: &fakePool{},
		now:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.deps = &Deps{
		PoolFactory: func(context.Context, string, *slog.Logger) (Pool, error) {
			return h.pool, nil
		},
		RepositoryFactory: func(Pool) account.Repository { return h.repo },
		AvatarFactory:     func(config.AvatarConfig) account.AvatarLookup { return nil },
		Clock:             func() time.Time { return h.now },
	}
	return h
}

// run executes the CLI with args, feeding stdin, and returns stdout and stderr.
func (h *harness) run(stdin string, args ...string) (string, string, error) {
	cmd := newRootCmd(h.deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func decodeProfile(t *testing.T, out string) map[string]any {
	t.Helper()
	var profile map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &profile), "output: %s", out)
	return profile
}

// register creates the administrator account and returns its id.
func (h *harness) register(t *testing.T) int64 {
	t.Helper()
	out, _, err := h.run("correct horse\n", "account", "register", "--name", "Ann", "--email", "Ann@Example.com")
	require.NoError(t, err)
	profile := decodeProfile(t, out)
	id, ok := profile["id"].(float64)
	require.True(t, ok, "profile id missing: %v", profile)
	return int64(id)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillpress/quillpress/internal/config"
	"github.com/quillpress/quillpress/internal/store"
	"github.com/quillpress/quillpress/pkg/errutil"
)

// seedHarness records what the seed command hands to the seeder.
func seedHarness(t *testing.T) (*harness, *[]*store.Fixtures) {
	t.Helper()
	h := newHarness(t)
	var calls []*store.Fixtures
	h.deps.Seeder = func(ctx context.Context, pool Pool, f *store.Fixtures) (store.SeedResult, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline, "seed must run under the --timeout deadline")
		assert.Same(t, h.pool, pool)
		calls = append(calls, f)
		return store.SeedResult{Roles: len(f.Roles), Permissions: len(f.Permissions), Grants: 3}, nil
	}
	return h, &calls
}

func TestNewSeedCmd(t *testing.T) {
	cmd := NewSeedCmd(&Deps{})
	require.NotNil(t, cmd)
	assert.Equal(t, "seed", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.NotNil(t, cmd.RunE)
}

func TestNewSeedCmd_Flags(t *testing.T) {
	cmd := NewSeedCmd(&Deps{})

	timeout, err := cmd.Flags().GetDuration("timeout")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout, "default timeout should be 30s")

	fixtures, err := cmd.Flags().GetString("fixtures")
	require.NoError(t, err)
	assert.Empty(t, fixtures)
}

func TestRunSeed_DefaultFixtures(t *testing.T) {
	h, calls := seedHarness(t)

	stdout, _, err := h.run("", "seed")
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	names := make([]string, 0, 3)
	for _, r := range (*calls)[0].Roles {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Administrator", "Editor", "Author"}, names)
	assert.Contains(t, stdout, "Seeded 3 roles, 3 permissions, 3 grants")
	assert.True(t, h.pool.closed.Load())
}

func TestRunSeed_FixturesFile(t *testing.T) {
	h, calls := seedHarness(t)
	path := writeConfigFile(t, `
roles:
  - name: Owner
    description: Runs the site
permissions:
  - name: Publish posts
    action_type: publish
    object_type: post
    roles: [Owner]
`)

	_, _, err := h.run("", "seed", "--fixtures", path)
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	require.Len(t, (*calls)[0].Roles, 1)
	assert.Equal(t, "Owner", (*calls)[0].Roles[0].Name)
}

func TestRunSeed_MissingFixturesFile(t *testing.T) {
	h, calls := seedHarness(t)

	_, _, err := h.run("", "seed", "--fixtures", filepath.Join(t.TempDir(), "absent.yaml"))
	errutil.AssertErrorCode(t, err, "FIXTURE_INVALID")
	assert.Empty(t, *calls)
}

func TestRunSeed_MissingDatabaseURL(t *testing.T) {
	h, calls := seedHarness(t)
	t.Setenv(config.EnvDatabaseURL, "")

	_, _, err := h.run("", "seed")
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Empty(t, *calls)
}

func TestRunSeed_SeederFailure(t *testing.T) {
	h := newHarness(t)
	h.deps.Seeder = func(context.Context, Pool, *store.Fixtures) (store.SeedResult, error) {
		return store.SeedResult{}, errors.New("relation \"roles\" does not exist")
	}

	_, _, err := h.run("", "seed")
	errutil.AssertErrorCode(t, err, "SEED_FAILED")
	assert.True(t, h.pool.closed.Load())
}

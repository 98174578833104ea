// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillpress/quillpress/internal/store"
	"github.com/quillpress/quillpress/pkg/errutil"
)

func TestDefaultFixtures(t *testing.T) {
	f, err := store.DefaultFixtures()
	require.NoError(t, err)

	names := make([]string, 0, len(f.Roles))
	for _, r := range f.Roles {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Administrator", "Editor", "Author"}, names)

	require.Len(t, f.Permissions, 3)
	for _, p := range f.Permissions {
		assert.Equal(t, "post", p.ObjectType)
		assert.Nil(t, p.ObjectID)
		assert.Equal(t, []string{"Administrator"}, p.Roles)
	}
}

func TestFixtureSchema(t *testing.T) {
	data, err := store.FixtureSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, store.FixtureSchemaID, schema["$id"])
	assert.Contains(t, schema["properties"], "roles")
}

func TestParseFixtures_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "   \n"},
		{"not yaml", "roles: [unclosed"},
		{"no roles", "roles: []\n"},
		{"role without name", "roles:\n  - description: nameless\n"},
		{"unknown field", "roles:\n  - name: Admin\n    colour: red\n"},
		{"permission missing action", "roles:\n  - name: Admin\npermissions:\n  - name: Edit\n    object_type: post\n"},
		{"object id not integer", "roles:\n  - name: Admin\npermissions:\n  - name: Edit\n    action_type: edit\n    object_type: post\n    object_id: seven\n"},
		{"duplicate role", "roles:\n  - name: Admin\n  - name: Admin\n"},
		{"undefined role reference", "roles:\n  - name: Admin\npermissions:\n  - name: Edit\n    action_type: edit\n    object_type: post\n    roles: [Owner]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.ParseFixtures([]byte(tt.data))
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "FIXTURE_INVALID")
		})
	}
}

func TestParseFixtures_ScopedPermission(t *testing.T) {
	f, err := store.ParseFixtures([]byte(`
roles:
  - name: Author
permissions:
  - name: Edit welcome post
    action_type: edit
    object_type: post
    object_id: 1
    roles: [Author]
`))
	require.NoError(t, err)
	require.Len(t, f.Permissions, 1)
	require.NotNil(t, f.Permissions[0].ObjectID)
	assert.Equal(t, int64(1), *f.Permissions[0].ObjectID)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	f := &store.Fixtures{
		Roles: []store.RoleFixture{
			{Name: "Administrator", Description: "Administrators"},
			{Name: "Editor"},
		},
		Permissions: []store.PermissionFixture{
			{Name: "Edit posts", ActionType: "edit", ObjectType: "post", Roles: []string{"Administrator", "Editor"}},
		},
	}

	t.Run("upserts roles, permissions and grants", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO roles`).
			WithArgs(pgxmock.AnyArg(), "Administrator", "Administrators").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
		mock.ExpectQuery(`INSERT INTO roles`).
			WithArgs(pgxmock.AnyArg(), "Editor", "").
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(2)))
		mock.ExpectQuery(`INSERT INTO permissions`).
			WithArgs(pgxmock.AnyArg(), "Edit posts", "edit", "post", pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(10)))
		mock.ExpectExec(`INSERT INTO permissions_roles`).
			WithArgs(int64(1), int64(10)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO permissions_roles`).
			WithArgs(int64(2), int64(10)).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))
		mock.ExpectCommit()

		result, err := store.Seed(ctx, mock, f)
		require.NoError(t, err)
		assert.Equal(t, store.SeedResult{Roles: 2, Permissions: 1, Grants: 1}, result)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure rolls back", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO roles`).
			WithArgs(pgxmock.AnyArg(), "Administrator", "Administrators").
			WillReturnError(errors.New("relation \"roles\" does not exist"))
		mock.ExpectRollback()

		_, err = store.Seed(ctx, mock, f)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SEED_FAILED")
		errutil.AssertErrorContext(t, err, "role", "Administrator")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin fails", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		_, err = store.Seed(ctx, mock, f)
		errutil.AssertErrorCode(t, err, "SEED_FAILED")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

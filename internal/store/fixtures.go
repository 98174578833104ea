// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package store

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"slices"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// FixtureSchemaID is the $id of the fixture file JSON Schema.
const FixtureSchemaID = "https://quillpress.dev/schemas/fixtures.schema.json"

// Fixtures is the seed data for roles and permissions.
type Fixtures struct {
	Roles       []RoleFixture       `yaml:"roles" json:"roles" jsonschema:"minItems=1"`
	Permissions []PermissionFixture `yaml:"permissions,omitempty" json:"permissions,omitempty"`
}

// RoleFixture describes one role.
type RoleFixture struct {
	Name        string `yaml:"name" json:"name" jsonschema:"minLength=1,maxLength=150"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// PermissionFixture describes one permission and the roles that hold it.
type PermissionFixture struct {
	Name       string   `yaml:"name" json:"name" jsonschema:"minLength=1,maxLength=150"`
	ActionType string   `yaml:"action_type" json:"action_type" jsonschema:"minLength=1,maxLength=150"`
	ObjectType string   `yaml:"object_type" json:"object_type" jsonschema:"minLength=1,maxLength=150"`
	ObjectID   *int64   `yaml:"object_id,omitempty" json:"object_id,omitempty"`
	Roles      []string `yaml:"roles,omitempty" json:"roles,omitempty"`
}

var (
	fixtureSchemaOnce sync.Once
	fixtureSchema     *jschema.Schema
	fixtureSchemaErr  error
)

// FixtureSchema returns the JSON Schema fixture files are validated against.
func FixtureSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&Fixtures{})
	schema.ID = jsonschema.ID(FixtureSchemaID)
	schema.Title = "QuillPress seed fixtures"
	schema.Description = "Roles and permissions loaded by quillpress seed"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("FIXTURE_SCHEMA_FAILED").Wrap(err)
	}
	return data, nil
}

func compiledFixtureSchema() (*jschema.Schema, error) {
	fixtureSchemaOnce.Do(func() {
		data, err := FixtureSchema()
		if err != nil {
			fixtureSchemaErr = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			fixtureSchemaErr = oops.Code("FIXTURE_SCHEMA_FAILED").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		if err := c.AddResource(FixtureSchemaID, doc); err != nil {
			fixtureSchemaErr = oops.Code("FIXTURE_SCHEMA_FAILED").Wrap(err)
			return
		}
		fixtureSchema, fixtureSchemaErr = c.Compile(FixtureSchemaID)
		if fixtureSchemaErr != nil {
			fixtureSchemaErr = oops.Code("FIXTURE_SCHEMA_FAILED").Wrap(fixtureSchemaErr)
		}
	})
	return fixtureSchema, fixtureSchemaErr
}

// DefaultFixtures returns the built-in roles and permissions.
func DefaultFixtures() (*Fixtures, error) {
	return ParseFixtures(defaultFixtures)
}

// ParseFixtures validates YAML fixture data against the schema and decodes it.
// Permissions may only reference roles defined in the same file.
func ParseFixtures(data []byte) (*Fixtures, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, oops.Code("FIXTURE_INVALID").Errorf("fixture data is empty")
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, oops.Code("FIXTURE_INVALID").With("operation", "parse yaml").Wrap(err)
	}
	// Round-trip through JSON so the validator sees JSON types.
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, oops.Code("FIXTURE_INVALID").With("operation", "convert yaml").Wrap(err)
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(asJSON))
	if err != nil {
		return nil, oops.Code("FIXTURE_INVALID").With("operation", "convert yaml").Wrap(err)
	}

	sch, err := compiledFixtureSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(doc); err != nil {
		return nil, oops.Code("FIXTURE_INVALID").With("operation", "validate schema").Wrap(err)
	}

	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Code("FIXTURE_INVALID").With("operation", "decode fixtures").Wrap(err)
	}

	roles := make([]string, 0, len(f.Roles))
	for _, r := range f.Roles {
		if slices.Contains(roles, r.Name) {
			return nil, oops.Code("FIXTURE_INVALID").With("role", r.Name).Errorf("role defined twice")
		}
		roles = append(roles, r.Name)
	}
	for _, p := range f.Permissions {
		for _, role := range p.Roles {
			if !slices.Contains(roles, role) {
				return nil, oops.Code("FIXTURE_INVALID").
					With("permission", p.Name).
					With("role", role).
					Errorf("permission references undefined role")
			}
		}
	}
	return &f, nil
}

// SeedResult counts the rows a Seed call wrote.
type SeedResult struct {
	Roles       int
	Permissions int
	Grants      int
}

// beginner is satisfied by *pgxpool.Pool, *pgx.Conn and pgxmock.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Seed upserts the fixtures in one transaction. Running it again updates
// descriptions and permission targets in place and adds missing grants.
func Seed(ctx context.Context, db beginner, f *Fixtures) (SeedResult, error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return SeedResult{}, oops.Code("SEED_FAILED").With("operation", "begin transaction").Wrap(err)
	}

	result, err := seedTx(ctx, tx, f)
	if err != nil {
		_ = tx.Rollback(ctx) //nolint:errcheck // seed error takes precedence
		return SeedResult{}, oops.Code("SEED_FAILED").Wrap(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return SeedResult{}, oops.Code("SEED_FAILED").With("operation", "commit").Wrap(err)
	}
	return result, nil
}

func seedTx(ctx context.Context, tx pgx.Tx, f *Fixtures) (SeedResult, error) {
	var result SeedResult
	roleIDs := make(map[string]int64, len(f.Roles))

	for _, r := range f.Roles {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO roles (uuid, name, description)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
			RETURNING id
		`, ulid.Make().String(), r.Name, r.Description).Scan(&id)
		if err != nil {
			return result, oops.With("operation", "upsert role").With("role", r.Name).Wrap(err)
		}
		roleIDs[r.Name] = id
		result.Roles++
	}

	for _, p := range f.Permissions {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO permissions (uuid, name, action_type, object_type, object_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (name) DO UPDATE SET
				action_type = EXCLUDED.action_type,
				object_type = EXCLUDED.object_type,
				object_id = EXCLUDED.object_id
			RETURNING id
		`, ulid.Make().String(), p.Name, p.ActionType, p.ObjectType, p.ObjectID).Scan(&id)
		if err != nil {
			return result, oops.With("operation", "upsert permission").With("permission", p.Name).Wrap(err)
		}
		result.Permissions++

		for _, role := range p.Roles {
			tag, err := tx.Exec(ctx, `
				INSERT INTO permissions_roles (role_id, permission_id)
				VALUES ($1, $2)
				ON CONFLICT (role_id, permission_id) DO NOTHING
			`, roleIDs[role], id)
			if err != nil {
				return result, oops.With("operation", "grant permission").
					With("permission", p.Name).
					With("role", role).
					Wrap(err)
			}
			result.Grants += int(tag.RowsAffected())
		}
	}
	return result, nil
}

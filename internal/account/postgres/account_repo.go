// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

// Package postgres implements account.Repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quillpress/quillpress/internal/account"
)

// emailConstraint is the unique constraint PostgreSQL names for users.email.
const emailConstraint = "users_email_key"

// DB is the part of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	db DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, uuid, name, email, password, status, image, created_at, updated_at`

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("id", id).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get account by id").With("id", id).Wrap(err)
	}
	return a, nil
}

// GetByEmail retrieves an account by email. Emails are stored lowercased.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE email = lower($1)`, email)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("email", email).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get account by email").With("email", email).Wrap(err)
	}
	return a, nil
}

// Count returns the number of accounts.
func (r *AccountRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, oops.With("operation", "count accounts").Wrap(err)
	}
	return n, nil
}

// Create inserts a new account and sets its ID.
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (uuid, name, email, password, status, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		a.PublicID.String(),
		a.Name,
		a.Email,
		a.PasswordHash,
		string(a.Status),
		a.Image,
		a.CreatedAt,
		a.UpdatedAt,
	).Scan(&a.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == emailConstraint {
			return oops.With("email", a.Email).Wrap(account.ErrDuplicateEmail)
		}
		return oops.With("operation", "insert account").With("email", a.Email).Wrap(err)
	}
	return nil
}

// UpdateStatus sets the status if it still equals from.
func (r *AccountRepository) UpdateStatus(ctx context.Context, id int64, from, to account.Status) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, oops.With("operation", "update status").With("id", id).Wrap(err)
	}
	return r.swapped(ctx, id, tag)
}

// ReplacePasswordHash swaps the password hash if it still equals oldHash.
func (r *AccountRepository) ReplacePasswordHash(ctx context.Context, id int64, oldHash, newHash string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password = $3, updated_at = now() WHERE id = $1 AND password = $2`,
		id, oldHash, newHash)
	if err != nil {
		return false, oops.With("operation", "replace password hash").With("id", id).Wrap(err)
	}
	return r.swapped(ctx, id, tag)
}

// ResetPassword swaps the password hash and reactivates the account in one statement.
func (r *AccountRepository) ResetPassword(ctx context.Context, id int64, oldHash, newHash string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password = $3, status = $4, updated_at = now() WHERE id = $1 AND password = $2`,
		id, oldHash, newHash, string(account.StatusActive))
	if err != nil {
		return false, oops.With("operation", "reset password").With("id", id).Wrap(err)
	}
	return r.swapped(ctx, id, tag)
}

// swapped interprets a conditional update: no row touched is either a lost
// race or a missing account.
func (r *AccountRepository) swapped(ctx context.Context, id int64, tag pgconn.CommandTag) (bool, error) {
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, oops.With("operation", "check account exists").With("id", id).Wrap(err)
	}
	if !exists {
		return false, oops.With("id", id).Wrap(account.ErrNotFound)
	}
	return false, nil
}

// AttachRole grants a role to an account. Attaching twice is a no-op.
func (r *AccountRepository) AttachRole(ctx context.Context, accountID, roleID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO roles_users (role_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (role_id, user_id) DO NOTHING
	`, roleID, accountID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return oops.With("account_id", accountID).With("role_id", roleID).Wrap(account.ErrNotFound)
		}
		return oops.With("operation", "attach role").
			With("account_id", accountID).
			With("role_id", roleID).
			Wrap(err)
	}
	return nil
}

// GetRoleByName retrieves a role without its permissions.
func (r *AccountRepository) GetRoleByName(ctx context.Context, name string) (*account.Role, error) {
	var role account.Role
	err := r.db.QueryRow(ctx,
		`SELECT id, name, description FROM roles WHERE name = $1`, name,
	).Scan(&role.ID, &role.Name, &role.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("role", name).Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "get role by name").With("role", name).Wrap(err)
	}
	return &role, nil
}

// RolesWithPermissions returns the account's roles in attachment order, each
// with its permissions in grant order.
func (r *AccountRepository) RolesWithPermissions(ctx context.Context, accountID int64) ([]account.Role, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.name, r.description,
		       p.id, p.name, p.action_type, p.object_type, p.object_id
		FROM roles_users ru
		JOIN roles r ON r.id = ru.role_id
		LEFT JOIN permissions_roles pr ON pr.role_id = r.id
		LEFT JOIN permissions p ON p.id = pr.permission_id
		WHERE ru.user_id = $1
		ORDER BY ru.id, pr.id
	`, accountID)
	if err != nil {
		return nil, oops.With("operation", "query account roles").With("account_id", accountID).Wrap(err)
	}
	defer rows.Close()

	var roles []account.Role
	for rows.Next() {
		var (
			role     account.Role
			permID   *int64
			permName *string
			action   *string
			object   *string
			objectID *int64
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Description,
			&permID, &permName, &action, &object, &objectID); err != nil {
			return nil, oops.With("operation", "scan account role").With("account_id", accountID).Wrap(err)
		}
		if n := len(roles); n == 0 || roles[n-1].ID != role.ID {
			roles = append(roles, role)
		}
		if permID != nil {
			last := &roles[len(roles)-1]
			last.Permissions = append(last.Permissions, account.Permission{
				ID:         *permID,
				Name:       deref(permName),
				ActionType: deref(action),
				ObjectType: deref(object),
				ObjectID:   objectID,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate account roles").With("account_id", accountID).Wrap(err)
	}
	return roles, nil
}

// DirectPermissions returns permissions granted to the account itself, in grant order.
func (r *AccountRepository) DirectPermissions(ctx context.Context, accountID int64) ([]account.Permission, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.name, p.action_type, p.object_type, p.object_id
		FROM permissions_users pu
		JOIN permissions p ON p.id = pu.permission_id
		WHERE pu.user_id = $1
		ORDER BY pu.id
	`, accountID)
	if err != nil {
		return nil, oops.With("operation", "query direct permissions").With("account_id", accountID).Wrap(err)
	}
	defer rows.Close()

	var perms []account.Permission
	for rows.Next() {
		var p account.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.ActionType, &p.ObjectType, &p.ObjectID); err != nil {
			return nil, oops.With("operation", "scan direct permission").With("account_id", accountID).Wrap(err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate direct permissions").With("account_id", accountID).Wrap(err)
	}
	return perms, nil
}

// GrantPermission attaches a permission directly to an account.
func (r *AccountRepository) GrantPermission(ctx context.Context, accountID, permissionID int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO permissions_users (user_id, permission_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, permission_id) DO NOTHING
	`, accountID, permissionID)
	if err != nil {
		return oops.With("operation", "grant permission").
			With("account_id", accountID).
			With("permission_id", permissionID).
			Wrap(err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		a        account.Account
		publicID string
		status   string
	)
	if err := row.Scan(&a.ID, &publicID, &a.Name, &a.Email, &a.PasswordHash,
		&status, &a.Image, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := ulid.Parse(publicID)
	if err != nil {
		return nil, oops.With("operation", "parse account uuid").With("uuid", publicID).Wrap(err)
	}
	a.PublicID = id
	a.Status = account.Status(status)
	if !a.Status.Valid() {
		return nil, oops.With("status", status).Errorf("unknown account status")
	}
	return &a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ account.Repository = (*AccountRepository)(nil)

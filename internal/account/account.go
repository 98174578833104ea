// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package account

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinPasswordLength is the shortest password accepted on register, change and reset.
const MinPasswordLength = 8

// Field length limits, matching the users table.
const (
	MaxNameLength  = 150
	MaxEmailLength = 254
)

// Status is the lockout state of an account.
type Status string

// Account statuses, in escalation order.
const (
	StatusActive Status = "active"
	StatusWarn1  Status = "warn-1"
	StatusWarn2  Status = "warn-2"
	StatusWarn3  Status = "warn-3"
	StatusLocked Status = "locked"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusWarn1, StatusWarn2, StatusWarn3, StatusLocked:
		return true
	}
	return false
}

// Account is a registered user as stored by a Repository.
type Account struct {
	ID           int64
	PublicID     ulid.ULID
	Name         string
	Email        string
	PasswordHash string
	Status       Status
	Image        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount builds an unsaved active account. The email is validated and lowercased.
func NewAccount(name, email, passwordHash string) (*Account, error) {
	if passwordHash == "" {
		return nil, oops.Code(CodeValidation).Errorf("password hash cannot be empty")
	}
	if len(name) > MaxNameLength {
		return nil, oops.Code(CodeValidation).
			With("max", MaxNameLength).
			Errorf("name must be at most %d characters", MaxNameLength)
	}
	now := time.Now().UTC()
	a := &Account{
		PublicID:     ulid.Make(),
		Name:         name,
		PasswordHash: passwordHash,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.SetEmail(email); err != nil {
		return nil, err
	}
	return a, nil
}

// SetEmail validates and stores the email in its canonical lowercase form.
func (a *Account) SetEmail(email string) error {
	canonical := NormalizeEmail(email)
	if err := ValidateEmail(canonical); err != nil {
		return err
	}
	a.Email = canonical
	return nil
}

// IsLocked reports whether the account is locked out.
func (a *Account) IsLocked() bool {
	return a.Status == StatusLocked
}

// Profile returns the sanitized view of the account.
func (a *Account) Profile() *Profile {
	p := &Profile{
		ID:        a.ID,
		PublicID:  a.PublicID,
		Name:      a.Name,
		Email:     a.Email,
		Status:    a.Status,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Image != nil {
		img := *a.Image
		p.Image = &img
	}
	return p
}

// Profile is what callers outside this package see of an account.
// It never carries the password hash.
type Profile struct {
	ID        int64     `json:"id"`
	PublicID  ulid.ULID `json:"uuid"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    Status    `json:"status"`
	Image     *string   `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeEmail trims and lowercases an email for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the address is a bare, well-formed email.
// The '|' character is rejected since it delimits reset token fields.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeValidation).Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code(CodeValidation).
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || strings.Contains(email, "|") {
		return oops.Code(CodeValidation).
			With("email", email).
			Errorf("please enter a valid email address")
	}
	return nil
}

// ValidatePassword enforces the minimum password length, counted in characters.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return oops.Code(CodeValidation).
			With("min", MinPasswordLength).
			Errorf("your password must be at least %d characters long", MinPasswordLength)
	}
	return nil
}

// Role groups permissions that can be attached to accounts.
type Role struct {
	ID          int64
	Name        string
	Description string
	Permissions []Permission
}

// Permission grants an action on an object type, optionally scoped to one object.
type Permission struct {
	ID         int64
	Name       string
	ActionType string
	ObjectType string
	ObjectID   *int64
}

// Repository persists accounts, roles and grants.
//
// Implementations must make UpdateStatus, ReplacePasswordHash and ResetPassword
// atomic per account row.
type Repository interface {
	// GetByID retrieves an account. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id int64) (*Account, error)

	// GetByEmail retrieves an account by lowercased email. Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// Count returns the number of stored accounts.
	Count(ctx context.Context) (int64, error)

	// Create inserts the account and assigns its ID.
	// Returns ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, account *Account) error

	// UpdateStatus sets the status only if it currently equals from.
	// Returns false when another writer changed it first.
	UpdateStatus(ctx context.Context, id int64, from, to Status) (bool, error)

	// ReplacePasswordHash swaps the password hash only if it still equals oldHash.
	// Returns false when the hash was changed by another writer.
	ReplacePasswordHash(ctx context.Context, id int64, oldHash, newHash string) (bool, error)

	// ResetPassword swaps the password hash like ReplacePasswordHash and sets
	// the status back to active in the same write.
	ResetPassword(ctx context.Context, id int64, oldHash, newHash string) (bool, error)

	// AttachRole grants a role to an account.
	AttachRole(ctx context.Context, accountID, roleID int64) error

	// GetRoleByName retrieves a role by name. Returns ErrNotFound if absent.
	GetRoleByName(ctx context.Context, name string) (*Role, error)

	// RolesWithPermissions returns the account's roles in attachment order,
	// each with its permissions.
	RolesWithPermissions(ctx context.Context, accountID int64) ([]Role, error)

	// DirectPermissions returns permissions granted to the account itself.
	DirectPermissions(ctx context.Context, accountID int64) ([]Permission, error)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

// Package accounttest provides an in-memory account.Repository for tests and tooling.
package accounttest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/quillpress/quillpress/internal/account"
)

// MemoryRepository is a goroutine-safe in-memory account.Repository.
// Stored values are copied in and out so callers cannot mutate them in place.
type MemoryRepository struct {
	mu          sync.Mutex
	nextID      int64
	accounts    map[int64]account.Account
	roles       map[int64]account.Role
	roleIDs     []int64
	memberships map[int64][]int64 // account -> roles, attachment order
	direct      map[int64][]account.Permission
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:    make(map[int64]account.Account),
		roles:       make(map[int64]account.Role),
		memberships: make(map[int64][]int64),
		direct:      make(map[int64][]account.Permission),
	}
}

func (r *MemoryRepository) id() int64 {
	r.nextID++
	return r.nextID
}

// AddRole stores a role with the given permissions and returns it with IDs assigned.
func (r *MemoryRepository) AddRole(name string, perms ...account.Permission) account.Role {
	r.mu.Lock()
	defer r.mu.Unlock()

	role := account.Role{ID: r.id(), Name: name}
	for _, p := range perms {
		if p.ID == 0 {
			p.ID = r.id()
		}
		role.Permissions = append(role.Permissions, p)
	}
	r.roles[role.ID] = role
	r.roleIDs = append(r.roleIDs, role.ID)
	return role
}

// GrantPermission attaches a permission directly to an account.
func (r *MemoryRepository) GrantPermission(accountID int64, p account.Permission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		p.ID = r.id()
	}
	r.direct[accountID] = append(r.direct[accountID], p)
}

// Put stores an account as-is, assigning an ID if it has none.
func (r *MemoryRepository) Put(a account.Account) account.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == 0 {
		a.ID = r.id()
	}
	r.accounts[a.ID] = a
	return a
}

// GetByID retrieves an account.
func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return &a, nil
}

// GetByEmail retrieves an account by lowercased email.
func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = account.NormalizeEmail(email)
	for _, a := range r.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, account.ErrNotFound
}

// Count returns the number of accounts.
func (r *MemoryRepository) Count(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.accounts)), nil
}

// Create inserts the account and assigns its ID.
func (r *MemoryRepository) Create(_ context.Context, a *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == a.Email {
			return account.ErrDuplicateEmail
		}
	}
	a.ID = r.id()
	r.accounts[a.ID] = *a
	return nil
}

// UpdateStatus sets the status if it still equals from.
func (r *MemoryRepository) UpdateStatus(_ context.Context, id int64, from, to account.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return false, account.ErrNotFound
	}
	if a.Status != from {
		return false, nil
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	r.accounts[id] = a
	return true, nil
}

// ReplacePasswordHash swaps the hash if it still equals oldHash.
func (r *MemoryRepository) ReplacePasswordHash(_ context.Context, id int64, oldHash, newHash string) (bool, error) {
	return r.swapHash(id, oldHash, newHash, nil)
}

// ResetPassword swaps the hash and sets the status to active.
func (r *MemoryRepository) ResetPassword(_ context.Context, id int64, oldHash, newHash string) (bool, error) {
	active := account.StatusActive
	return r.swapHash(id, oldHash, newHash, &active)
}

func (r *MemoryRepository) swapHash(id int64, oldHash, newHash string, status *account.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return false, account.ErrNotFound
	}
	if a.PasswordHash != oldHash {
		return false, nil
	}
	a.PasswordHash = newHash
	if status != nil {
		a.Status = *status
	}
	a.UpdatedAt = time.Now().UTC()
	r.accounts[id] = a
	return true, nil
}

// AttachRole grants a role to an account. Attaching twice is a no-op.
func (r *MemoryRepository) AttachRole(_ context.Context, accountID, roleID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[accountID]; !ok {
		return account.ErrNotFound
	}
	if _, ok := r.roles[roleID]; !ok {
		return account.ErrNotFound
	}
	if slices.Contains(r.memberships[accountID], roleID) {
		return nil
	}
	r.memberships[accountID] = append(r.memberships[accountID], roleID)
	return nil
}

// GetRoleByName retrieves a role by name.
func (r *MemoryRepository) GetRoleByName(_ context.Context, name string) (*account.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.roleIDs {
		if role := r.roles[id]; role.Name == name {
			return &role, nil
		}
	}
	return nil, account.ErrNotFound
}

// RolesWithPermissions returns the account's roles in attachment order.
func (r *MemoryRepository) RolesWithPermissions(_ context.Context, accountID int64) ([]account.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roles := make([]account.Role, 0, len(r.memberships[accountID]))
	for _, id := range r.memberships[accountID] {
		role := r.roles[id]
		role.Permissions = slices.Clone(role.Permissions)
		roles = append(roles, role)
	}
	return roles, nil
}

// DirectPermissions returns permissions granted to the account itself.
func (r *MemoryRepository) DirectPermissions(_ context.Context, accountID int64) ([]account.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.direct[accountID]), nil
}

var _ account.Repository = (*MemoryRepository)(nil)

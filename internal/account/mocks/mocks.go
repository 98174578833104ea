// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

// Package mocks provides testify mocks for the account package interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/quillpress/quillpress/internal/account"
)

// MockRepository is a mock implementation of account.Repository.
type MockRepository struct {
	mock.Mock
}

// NewMockRepository creates a MockRepository that asserts its expectations on cleanup.
func NewMockRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockRepository {
	m := &MockRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// GetByID provides a mock function.
func (m *MockRepository) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*account.Account)
	return a, args.Error(1)
}

// GetByEmail provides a mock function.
func (m *MockRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	args := m.Called(ctx, email)
	a, _ := args.Get(0).(*account.Account)
	return a, args.Error(1)
}

// Count provides a mock function.
func (m *MockRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Create provides a mock function.
func (m *MockRepository) Create(ctx context.Context, a *account.Account) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

// UpdateStatus provides a mock function.
func (m *MockRepository) UpdateStatus(ctx context.Context, id int64, from, to account.Status) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

// ReplacePasswordHash provides a mock function.
func (m *MockRepository) ReplacePasswordHash(ctx context.Context, id int64, oldHash, newHash string) (bool, error) {
	args := m.Called(ctx, id, oldHash, newHash)
	return args.Bool(0), args.Error(1)
}

// ResetPassword provides a mock function.
func (m *MockRepository) ResetPassword(ctx context.Context, id int64, oldHash, newHash string) (bool, error) {
	args := m.Called(ctx, id, oldHash, newHash)
	return args.Bool(0), args.Error(1)
}

// AttachRole provides a mock function.
func (m *MockRepository) AttachRole(ctx context.Context, accountID, roleID int64) error {
	args := m.Called(ctx, accountID, roleID)
	return args.Error(0)
}

// GetRoleByName provides a mock function.
func (m *MockRepository) GetRoleByName(ctx context.Context, name string) (*account.Role, error) {
	args := m.Called(ctx, name)
	r, _ := args.Get(0).(*account.Role)
	return r, args.Error(1)
}

// RolesWithPermissions provides a mock function.
func (m *MockRepository) RolesWithPermissions(ctx context.Context, accountID int64) ([]account.Role, error) {
	args := m.Called(ctx, accountID)
	r, _ := args.Get(0).([]account.Role)
	return r, args.Error(1)
}

// DirectPermissions provides a mock function.
func (m *MockRepository) DirectPermissions(ctx context.Context, accountID int64) ([]account.Permission, error) {
	args := m.Called(ctx, accountID)
	p, _ := args.Get(0).([]account.Permission)
	return p, args.Error(1)
}

// MockPasswordHasher is a mock implementation of account.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a MockPasswordHasher that asserts its expectations on cleanup.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Hash provides a mock function.
func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

// Verify provides a mock function.
func (m *MockPasswordHasher) Verify(password, digest string) (bool, error) {
	args := m.Called(password, digest)
	return args.Bool(0), args.Error(1)
}

// NeedsUpgrade provides a mock function.
func (m *MockPasswordHasher) NeedsUpgrade(digest string) bool {
	args := m.Called(digest)
	return args.Bool(0)
}

// MockAvatarLookup is a mock implementation of account.AvatarLookup.
type MockAvatarLookup struct {
	mock.Mock
}

// NewMockAvatarLookup creates a MockAvatarLookup that asserts its expectations on cleanup.
func NewMockAvatarLookup(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockAvatarLookup {
	m := &MockAvatarLookup{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Lookup provides a mock function.
func (m *MockAvatarLookup) Lookup(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

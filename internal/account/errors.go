// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package account

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned by repositories when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by repositories when an email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// Error codes carried by every failure this package returns.
const (
	CodeValidation         = "ACCOUNT_VALIDATION_FAILED"
	CodeUnknownAccount     = "ACCOUNT_UNKNOWN"
	CodeInvalidCredentials = "ACCOUNT_INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeRegistrationClosed = "ACCOUNT_REGISTRATION_CLOSED"
	CodePasswordMismatch   = "ACCOUNT_PASSWORD_MISMATCH"
	CodeHashingFailed      = "ACCOUNT_HASHING_FAILED"
	CodeStorageFailed      = "ACCOUNT_STORAGE_FAILED"
	CodeTokenMalformed     = "RESET_TOKEN_MALFORMED"
	CodeTokenExpired       = "RESET_TOKEN_EXPIRED"
	CodeTokenInvalid       = "RESET_TOKEN_INVALID"

	CodeInvalidPermissionPattern = "ACCOUNT_INVALID_PERMISSION_PATTERN"
)

// remainingAttemptsKey is the oops context key holding the attempts left before lockout.
const remainingAttemptsKey = "remaining_attempts"

// HasCode reports whether err is an oops error carrying the given code.
func HasCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}

// RemainingAttempts extracts the remaining login attempts from an
// authentication failure. The second result is false when err carries none.
func RemainingAttempts(err error) (int, bool) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0, false
	}
	v, ok := oopsErr.Context()[remainingAttemptsKey]
	if !ok {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}

func unknownAccount() error {
	return oops.Code(CodeUnknownAccount).Errorf("there is no user with that email address")
}

func invalidCredentials(remaining int) error {
	return oops.Code(CodeInvalidCredentials).
		With(remainingAttemptsKey, remaining).
		Errorf("your password is incorrect, %d attempt(s) remaining", remaining)
}

func accountLocked() error {
	return oops.Code(CodeAccountLocked).
		With(remainingAttemptsKey, 0).
		Errorf("your account is locked due to too many login attempts, reset your password to log in again")
}

func passwordMismatch() error {
	return oops.Code(CodePasswordMismatch).Errorf("your new passwords do not match")
}

func storageFailed(operation string, err error) error {
	return oops.Code(CodeStorageFailed).With("operation", operation).Wrap(err)
}

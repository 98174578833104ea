// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

// Package account implements the account security core of QuillPress.
//
// # Components
//
//   - PasswordHasher - bcrypt (default) or argon2id digests; Hasher verifies both
//   - LockoutPolicy - escalates status active, warn-1..warn-3, locked on failed logins
//   - ResetTokenCodec - stateless reset tokens signed with the current password hash
//   - PermissionAggregator - deduplicated union of role and direct permissions
//   - Service - register, authenticate, change password, request and complete reset
//
// Storage is reached only through the Repository interface; see the postgres
// subpackage for the production implementation and accounttest for an
// in-memory one.
//
// # Errors
//
// Every failure is a samber/oops error carrying one of the Code* constants.
// Use HasCode to branch on them and RemainingAttempts to read the attempt
// count attached to authentication failures.
package account

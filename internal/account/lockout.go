// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Lockout configuration.
const (
	// LockoutThreshold is the warn level at which the account locks.
	LockoutThreshold = 4

	// statusRetries bounds how often a lost compare-and-swap is re-applied.
	statusRetries = 5

	statusRetryDelay = 5 * time.Millisecond
)

var errStatusConflict = errors.New("account status changed concurrently")

// statusStore is the part of Repository the lockout policy needs.
type statusStore interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
	UpdateStatus(ctx context.Context, id int64, from, to Status) (bool, error)
}

// Escalate returns the status after one more failed login and the number of
// attempts left before lockout. A locked account stays locked.
func Escalate(s Status) (Status, int) {
	switch s {
	case StatusActive:
		return StatusWarn1, LockoutThreshold - 1
	case StatusWarn1:
		return StatusWarn2, LockoutThreshold - 2
	case StatusWarn2:
		return StatusWarn3, LockoutThreshold - 3
	default:
		return StatusLocked, 0
	}
}

// LockoutPolicy escalates account status on failed logins and clears it on success.
// Every transition is written through to the store immediately.
type LockoutPolicy struct {
	store  statusStore
	logger *slog.Logger
}

// NewLockoutPolicy creates a LockoutPolicy backed by store.
func NewLockoutPolicy(store statusStore, logger *slog.Logger) *LockoutPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &LockoutPolicy{store: store, logger: logger}
}

// RecordFailure escalates the account one step and returns the remaining attempts.
// a.Status is updated to the persisted value.
func (p *LockoutPolicy) RecordFailure(ctx context.Context, a *Account) (int, error) {
	var remaining int
	current := a.Status

	err := p.swap(ctx, a.ID, &current, func(from Status) (Status, bool) {
		next, left := Escalate(from)
		remaining = left
		return next, true
	})
	if err != nil {
		return 0, err
	}

	a.Status = current
	if current == StatusLocked {
		lockoutsTotal.Inc()
		p.logger.InfoContext(ctx, "account locked after repeated login failures",
			"account_id", a.ID)
	}
	return remaining, nil
}

// RecordSuccess returns a non-locked account to active.
// Fails with an AccountLockedError if the account was locked in the meantime.
func (p *LockoutPolicy) RecordSuccess(ctx context.Context, a *Account) error {
	current := a.Status
	var locked bool

	err := p.swap(ctx, a.ID, &current, func(from Status) (Status, bool) {
		if from == StatusLocked {
			locked = true
			return from, false
		}
		return StatusActive, from != StatusActive
	})
	if err != nil {
		return err
	}
	a.Status = current
	if locked {
		return accountLocked()
	}
	return nil
}

// swap applies next to the stored status with compare-and-swap, re-reading and
// re-applying when another writer got there first. next returns false to skip the write.
func (p *LockoutPolicy) swap(ctx context.Context, id int64, current *Status, next func(Status) (Status, bool)) error {
	backoff := retry.WithMaxRetries(statusRetries, retry.NewConstant(statusRetryDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		to, write := next(*current)
		if !write {
			return nil
		}
		ok, err := p.store.UpdateStatus(ctx, id, *current, to)
		if err != nil {
			return storageFailed("update status", err)
		}
		if ok {
			*current = to
			return nil
		}

		fresh, err := p.store.GetByID(ctx, id)
		if err != nil {
			return storageFailed("reload account", err)
		}
		*current = fresh.Status
		return retry.RetryableError(errStatusConflict)
	})
	if errors.Is(err, errStatusConflict) {
		return storageFailed("update status", err)
	}
	return err
}

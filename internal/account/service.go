// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("quillpress/account")

// DefaultAdminRole is the role granted to the bootstrap account.
const DefaultAdminRole = "Administrator"

// Registration is the input for Register.
type Registration struct {
	Name     string
	Email    string
	Password string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for service events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAvatarLookup enables the best-effort avatar lookup on registration.
func WithAvatarLookup(lookup AvatarLookup) Option {
	return func(s *Service) {
		if lookup != nil {
			s.avatars = lookup
		}
	}
}

// WithResetTokenTTL sets how long issued reset tokens stay valid.
func WithResetTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithAdminRole sets the name of the role granted on registration.
func WithAdminRole(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.adminRole = name
		}
	}
}

// Service orchestrates registration, authentication and password management.
type Service struct {
	repo      Repository
	hasher    PasswordHasher
	codec     *ResetTokenCodec
	lockout   *LockoutPolicy
	perms     *PermissionAggregator
	avatars   AvatarLookup
	logger    *slog.Logger
	resetTTL  time.Duration
	adminRole string
}

// NewService creates a Service. The repository, hasher and reset codec are required.
func NewService(repo Repository, hasher PasswordHasher, codec *ResetTokenCodec, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, oops.Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if codec == nil {
		return nil, oops.Errorf("reset token codec is required")
	}

	s := &Service{
		repo:      repo,
		hasher:    hasher,
		codec:     codec,
		avatars:   noAvatar{},
		logger:    slog.Default(),
		resetTTL:  DefaultResetTokenTTL,
		adminRole: DefaultAdminRole,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lockout = NewLockoutPolicy(repo, s.logger)
	s.perms = NewPermissionAggregator(repo)
	return s, nil
}

// Register creates the single administrator account. It fails once any account exists.
func (s *Service) Register(ctx context.Context, reg Registration) (_ *Profile, err error) {
	ctx, end := startSpan(ctx, "account.register")
	defer end(&err)

	if err := ValidatePassword(reg.Password); err != nil {
		return nil, err
	}
	email := NormalizeEmail(reg.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return nil, storageFailed("count accounts", err)
	}
	if count > 0 {
		return nil, registrationClosed()
	}

	role, err := s.repo.GetRoleByName(ctx, s.adminRole)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeStorageFailed).
				With("role", s.adminRole).
				Errorf("administrator role does not exist, seed roles first")
		}
		return nil, storageFailed("get admin role", err)
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, hashingFailed(err)
	}

	acct, err := NewAccount(reg.Name, email, hash)
	if err != nil {
		return nil, err
	}
	acct.Image = s.lookupAvatar(ctx, email)

	if err := s.repo.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, registrationClosed()
		}
		return nil, storageFailed("create account", err)
	}
	if err := s.repo.AttachRole(ctx, acct.ID, role.ID); err != nil {
		return nil, storageFailed("attach admin role", err)
	}

	s.logger.InfoContext(ctx, "administrator account registered",
		"account_id", acct.ID, "role", role.Name)
	return acct.Profile(), nil
}

// Authenticate checks an email and password. Locked accounts are rejected before
// the password is looked at; a wrong password escalates the lockout status.
func (s *Service) Authenticate(ctx context.Context, email, password string) (_ *Profile, err error) {
	ctx, end := startSpan(ctx, "account.authenticate")
	defer end(&err)

	acct, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			recordLogin(LoginUnknown)
			return nil, unknownAccount()
		}
		recordLogin(LoginError)
		return nil, storageFailed("get account by email", err)
	}

	if acct.IsLocked() {
		recordLogin(LoginLocked)
		return nil, accountLocked()
	}

	ok, err := s.hasher.Verify(password, acct.PasswordHash)
	if err != nil {
		recordLogin(LoginError)
		return nil, hashingFailed(err)
	}

	if !ok {
		remaining, failErr := s.lockout.RecordFailure(ctx, acct)
		if failErr != nil {
			recordLogin(LoginError)
			return nil, failErr
		}
		if acct.IsLocked() {
			recordLogin(LoginLocked)
			return nil, accountLocked()
		}
		recordLogin(LoginInvalid)
		return nil, invalidCredentials(remaining)
	}

	if err := s.lockout.RecordSuccess(ctx, acct); err != nil {
		if HasCode(err, CodeAccountLocked) {
			recordLogin(LoginLocked)
		} else {
			recordLogin(LoginError)
		}
		return nil, err
	}

	s.upgradeHash(ctx, acct, password)
	recordLogin(LoginSuccess)
	return acct.Profile(), nil
}

// ChangePassword replaces the password of a signed-in account after checking the old one.
func (s *Service) ChangePassword(ctx context.Context, accountID int64, oldPassword, newPassword, confirmPassword string) (_ *Profile, err error) {
	ctx, end := startSpan(ctx, "account.change_password", attribute.Int64("account.id", accountID))
	defer end(&err)

	if newPassword != confirmPassword {
		return nil, passwordMismatch()
	}
	if err := ValidatePassword(newPassword); err != nil {
		return nil, err
	}

	acct, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, unknownAccount()
		}
		return nil, storageFailed("get account", err)
	}

	ok, err := s.hasher.Verify(oldPassword, acct.PasswordHash)
	if err != nil {
		return nil, hashingFailed(err)
	}
	if !ok {
		return nil, oops.Code(CodeInvalidCredentials).Errorf("your password is incorrect")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, hashingFailed(err)
	}

	swapped, err := s.repo.ReplacePasswordHash(ctx, acct.ID, acct.PasswordHash, hash)
	if err != nil {
		return nil, storageFailed("replace password hash", err)
	}
	if !swapped {
		return nil, oops.Code(CodeStorageFailed).
			With("account_id", acct.ID).
			Errorf("password was changed concurrently")
	}

	acct.PasswordHash = hash
	acct.UpdatedAt = time.Now().UTC()
	s.logger.InfoContext(ctx, "password changed", "account_id", acct.ID)
	return acct.Profile(), nil
}

// RequestReset issues a password reset token for the account with the given email.
// Delivering the token is the caller's job.
func (s *Service) RequestReset(ctx context.Context, email string, now time.Time) (_ string, err error) {
	ctx, end := startSpan(ctx, "account.request_reset")
	defer end(&err)

	acct, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", unknownAccount()
		}
		return "", storageFailed("get account by email", err)
	}

	token := s.codec.Issue(acct.Email, acct.PasswordHash, now.Add(s.resetTTL))
	recordReset(ResetRequested)
	s.logger.InfoContext(ctx, "password reset requested", "account_id", acct.ID)
	return token, nil
}

// CompleteReset sets a new password using a reset token and unlocks the account.
func (s *Service) CompleteReset(ctx context.Context, token, newPassword, confirmPassword string, now time.Time) (_ *Profile, err error) {
	ctx, end := startSpan(ctx, "account.complete_reset")
	defer end(&err)

	if newPassword != confirmPassword {
		return nil, passwordMismatch()
	}
	if err := ValidatePassword(newPassword); err != nil {
		return nil, err
	}

	var acct *Account
	lookup := func(ctx context.Context, email string) (string, error) {
		found, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
		if err != nil {
			return "", err
		}
		acct = found
		return found.PasswordHash, nil
	}

	if _, err := s.codec.Validate(ctx, token, lookup, now); err != nil {
		recordReset(ResetRejected)
		return nil, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, hashingFailed(err)
	}

	// The hash the token was checked against is the precondition, so a token
	// can be used once.
	swapped, err := s.repo.ResetPassword(ctx, acct.ID, acct.PasswordHash, hash)
	if err != nil {
		return nil, storageFailed("reset password", err)
	}
	if !swapped {
		recordReset(ResetRejected)
		return nil, oops.Code(CodeTokenInvalid).Errorf("reset token is invalid")
	}

	acct.PasswordHash = hash
	acct.Status = StatusActive
	acct.UpdatedAt = time.Now().UTC()
	recordReset(ResetCompleted)
	s.logger.InfoContext(ctx, "password reset completed", "account_id", acct.ID)
	return acct.Profile(), nil
}

// EffectivePermissions returns the deduplicated permissions of an account.
func (s *Service) EffectivePermissions(ctx context.Context, accountID int64) (_ PermissionSet, err error) {
	ctx, end := startSpan(ctx, "account.effective_permissions", attribute.Int64("account.id", accountID))
	defer end(&err)

	return s.perms.EffectivePermissions(ctx, accountID)
}

// lookupAvatar never fails registration; errors are logged and dropped.
func (s *Service) lookupAvatar(ctx context.Context, email string) *string {
	url, err := s.avatars.Lookup(ctx, email)
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort avatar lookup failed",
			"operation", "avatar_lookup",
			"error", err.Error())
		return nil
	}
	if url == "" {
		return nil
	}
	return &url
}

// upgradeHash rehashes a verified password with current settings. Best effort:
// login succeeds regardless.
func (s *Service) upgradeHash(ctx context.Context, acct *Account, password string) {
	if !s.hasher.NeedsUpgrade(acct.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort password rehash failed",
			"operation", "rehash_password",
			"account_id", acct.ID,
			"error", err.Error())
		return
	}
	swapped, err := s.repo.ReplacePasswordHash(ctx, acct.ID, acct.PasswordHash, hash)
	if err != nil {
		s.logger.WarnContext(ctx, "best-effort password rehash failed",
			"operation", "store_rehash",
			"account_id", acct.ID,
			"error", err.Error())
		return
	}
	if swapped {
		acct.PasswordHash = hash
	}
}

// startSpan opens a span for a service operation. The returned func records
// the operation's error, if any, and ends the span.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if err := *errp; err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func registrationClosed() error {
	return oops.Code(CodeRegistrationClosed).
		Errorf("a user is already registered, only one user is allowed")
}

func hashingFailed(err error) error {
	return oops.Code(CodeHashingFailed).Wrap(err)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package account

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
)

// DefaultResetTokenTTL is how long a reset token stays valid unless configured otherwise.
const DefaultResetTokenTTL = 24 * time.Hour

const resetTokenSeparator = "|"

// HashLookup returns the current password hash of the account with the given email.
// It returns ErrNotFound when no such account exists.
type HashLookup func(ctx context.Context, email string) (string, error)

// ResetTokenCodec issues and validates self-contained password reset tokens.
//
// A token is base64url(expires|email|signature) where signature is
// base64(sha256(expires || email || passwordHash || secret)). Nothing is stored
// server side: the current password hash is re-read on validation, so a password
// change invalidates every token issued before it.
type ResetTokenCodec struct {
	secret []byte
}

// NewResetTokenCodec creates a codec signing with the server-wide secret.
func NewResetTokenCodec(secret string) (*ResetTokenCodec, error) {
	if secret == "" {
		return nil, oops.Code(CodeValidation).Errorf("reset token secret is required")
	}
	return &ResetTokenCodec{secret: []byte(secret)}, nil
}

// Issue builds a token for email that expires at expiresAt.
func (c *ResetTokenCodec) Issue(email, passwordHash string, expiresAt time.Time) string {
	expires := strconv.FormatInt(expiresAt.Unix(), 10)
	email = NormalizeEmail(email)
	payload := strings.Join([]string{expires, email, c.sign(expires, email, passwordHash)}, resetTokenSeparator)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// Validate checks token against the account's current password hash and
// returns the email it was issued for.
func (c *ResetTokenCodec) Validate(ctx context.Context, token string, lookup HashLookup, now time.Time) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", malformedToken()
	}

	parts := strings.Split(string(raw), resetTokenSeparator)
	if len(parts) != 3 {
		return "", malformedToken()
	}
	expires, email, signature := parts[0], parts[1], parts[2]

	expiresAt, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return "", malformedToken()
	}
	if now.Unix() >= expiresAt {
		return "", oops.Code(CodeTokenExpired).Errorf("reset token has expired")
	}

	passwordHash, err := lookup(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", unknownAccount()
		}
		return "", storageFailed("lookup password hash", err)
	}

	expected := c.sign(expires, NormalizeEmail(email), passwordHash)
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return "", oops.Code(CodeTokenInvalid).Errorf("reset token is invalid")
	}
	return email, nil
}

func (c *ResetTokenCodec) sign(expires, email, passwordHash string) string {
	h := sha256.New()
	h.Write([]byte(expires))
	h.Write([]byte(email))
	h.Write([]byte(passwordHash))
	h.Write(c.secret)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func malformedToken() error {
	return oops.Code(CodeTokenMalformed).Errorf("reset token is malformed")
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package account

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm names a password hashing scheme.
type Algorithm string

// Supported algorithms.
const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// DefaultBcryptCost is used when no cost is configured.
const DefaultBcryptCost = bcrypt.DefaultCost

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

const argon2Prefix = "$argon2id$"

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted digest of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on a malformed digest.
	Verify(password, digest string) (bool, error)

	// NeedsUpgrade returns true if the digest should be recomputed with current settings.
	NeedsUpgrade(digest string) bool
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. Out-of-range costs fall back to DefaultBcryptCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash produces a bcrypt digest. bcrypt generates the salt itself.
func (h *BcryptHasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(bcryptInput(password), h.cost)
	if err != nil {
		return "", oops.Code(CodeHashingFailed).With("algorithm", AlgorithmBcrypt).Wrap(err)
	}
	return string(digest), nil
}

// Verify checks a password against a bcrypt digest.
func (h *BcryptHasher) Verify(password, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), bcryptInput(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, oops.Code(CodeHashingFailed).With("algorithm", AlgorithmBcrypt).Wrap(err)
}

// NeedsUpgrade returns true for non-bcrypt digests or ones made with a lower cost.
func (h *BcryptHasher) NeedsUpgrade(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return true
	}
	return cost < h.cost
}

// bcryptMaxInput is the longest input bcrypt accepts, in bytes.
const bcryptMaxInput = 72

// bcryptInput passes short passwords through unchanged and replaces longer ones
// with their base64 SHA-256 digest, so every byte of a long password counts.
func bcryptInput(password string) []byte {
	if len(password) <= bcryptMaxInput {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id digest in PHC string format.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code(CodeHashingFailed).With("algorithm", AlgorithmArgon2id).Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks a password against an argon2id digest.
func (h *Argon2idHasher) Verify(password, digest string) (bool, error) {
	malformed := oops.Code(CodeHashingFailed).With("algorithm", AlgorithmArgon2id)

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != string(AlgorithmArgon2id) {
		return false, malformed.Errorf("invalid argon2id digest format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, malformed.Wrap(err)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, malformed.Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return false, malformed.Errorf("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, malformed.Wrap(err)
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, malformed.Wrap(err)
	}
	keyLen := len(expected)
	if keyLen == 0 || keyLen > 1<<10 {
		return false, malformed.Errorf("invalid key length %d", keyLen)
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, uint8(threads), uint32(keyLen))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// NeedsUpgrade returns true for digests that are not argon2id.
func (h *Argon2idHasher) NeedsUpgrade(digest string) bool {
	return !strings.HasPrefix(digest, argon2Prefix)
}

// Hasher hashes with one configured algorithm and verifies digests of any
// supported algorithm, so switching algorithms does not lock users out.
type Hasher struct {
	primary  Algorithm
	bcrypt   *BcryptHasher
	argon2id *Argon2idHasher
}

// NewHasher creates a Hasher for the given primary algorithm.
func NewHasher(primary Algorithm, bcryptCost int) (*Hasher, error) {
	switch primary {
	case AlgorithmBcrypt, AlgorithmArgon2id:
	case "":
		primary = AlgorithmBcrypt
	default:
		return nil, oops.Code(CodeValidation).
			With("algorithm", string(primary)).
			Errorf("unsupported password algorithm")
	}
	return &Hasher{
		primary:  primary,
		bcrypt:   NewBcryptHasher(bcryptCost),
		argon2id: NewArgon2idHasher(),
	}, nil
}

// Hash hashes with the primary algorithm.
func (h *Hasher) Hash(password string) (string, error) {
	if h.primary == AlgorithmArgon2id {
		return h.argon2id.Hash(password)
	}
	return h.bcrypt.Hash(password)
}

// Verify dispatches on the digest prefix.
func (h *Hasher) Verify(password, digest string) (bool, error) {
	if strings.HasPrefix(digest, argon2Prefix) {
		return h.argon2id.Verify(password, digest)
	}
	return h.bcrypt.Verify(password, digest)
}

// NeedsUpgrade reports digests made by another algorithm or with weaker settings.
func (h *Hasher) NeedsUpgrade(digest string) bool {
	if h.primary == AlgorithmArgon2id {
		return h.argon2id.NeedsUpgrade(digest)
	}
	return h.bcrypt.NeedsUpgrade(digest)
}

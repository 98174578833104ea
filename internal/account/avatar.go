// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package account

import "context"

// AvatarLookup finds a profile image for an email address.
// An empty URL with a nil error means no image exists.
type AvatarLookup interface {
	Lookup(ctx context.Context, email string) (string, error)
}

// noAvatar is used when avatar lookups are disabled.
type noAvatar struct{}

func (noAvatar) Lookup(context.Context, string) (string, error) { return "", nil }

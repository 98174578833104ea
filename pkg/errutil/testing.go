// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package errutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, Code(err), "unexpected error code for: %v", err)
}

// AssertErrorContext asserts that err carries the given oops context key/value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	ctx := contextOf(err)
	require.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

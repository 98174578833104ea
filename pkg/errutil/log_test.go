// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package errutil_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillpress/quillpress/pkg/errutil"
)

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("TEST_ERROR").
		With("account_id", 7).
		Errorf("something failed")

	errutil.LogError(logger, "operation failed", err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "operation failed", entry["msg"])
	assert.Equal(t, "TEST_ERROR", entry["code"])
}

func TestLogError_RedactsSensitiveContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("RESET_TOKEN_INVALID").
		With("token", "c2VjcmV0").
		Errorf("bad token")

	errutil.LogError(logger, "reset failed", err)

	assert.NotContains(t, buf.String(), "c2VjcmV0")
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(logger, "operation failed", errors.New("standard error"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Contains(t, entry["error"], "standard error")
}

func TestCode(t *testing.T) {
	assert.Equal(t, "MY_CODE", errutil.Code(oops.Code("MY_CODE").Errorf("x")))
	assert.Empty(t, errutil.Code(errors.New("plain")))
}

func TestRedactContext_LeavesOtherKeys(t *testing.T) {
	out := errutil.RedactContext(map[string]any{"password": "hunter22", "email": "a@example.com"})
	assert.Equal(t, "[REDACTED]", out["password"])
	assert.Equal(t, "a@example.com", out["email"])
}

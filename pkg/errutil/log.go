// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

// Package errutil holds helpers for logging and asserting coded oops errors.
package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// sensitiveKeys are oops context keys whose values must never reach a log line.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"token":         {},
	"secret":        {},
}

// LogError logs err at error level. Coded oops errors contribute their code and
// context, with sensitive context values redacted.
func LogError(logger *slog.Logger, msg string, err error) {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		logger.Error(msg, "error", err)
		return
	}

	attrs := []any{"error", oopsErr.Error()}
	if code := Code(err); code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := RedactContext(oopsErr.Context()); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	logger.Error(msg, attrs...)
}

// RedactContext returns a copy of ctx with sensitive values replaced.
func RedactContext(ctx map[string]any) map[string]any {
	if len(ctx) == 0 {
		return ctx
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		if IsSensitive(k) {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = v
	}
	return out
}

// IsSensitive reports whether values under key must be redacted before logging.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[key]
	return ok
}

// Code returns the oops code carried by err, or "" if there is none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := any(oopsErr.Code()).(string)
	return code
}

func contextOf(err error) map[string]any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

package account

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Login result labels.
const (
	LoginSuccess = "success"
	LoginInvalid = "invalid_credentials"
	LoginLocked  = "locked"
	LoginUnknown = "unknown_account"
	LoginError   = "error"
)

// Reset stage labels.
const (
	ResetRequested = "requested"
	ResetCompleted = "completed"
	ResetRejected  = "rejected"
)

// loginAttempts counts authentication attempts by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var loginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quillpress_login_attempts_total",
		Help: "Total number of login attempts by result",
	},
	[]string{"result"},
)

// lockoutsTotal counts accounts that transitioned to locked.
var lockoutsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "quillpress_account_lockouts_total",
		Help: "Total number of accounts locked after repeated login failures",
	},
)

// passwordResets counts password reset activity by stage.
var passwordResets = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quillpress_password_resets_total",
		Help: "Total number of password reset requests and completions",
	},
	[]string{"stage"},
)

// RegisterMetrics registers account metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(loginAttempts)
	reg.MustRegister(lockoutsTotal)
	reg.MustRegister(passwordResets)
}

func recordLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

func recordReset(stage string) {
	passwordResets.WithLabelValues(stage).Inc()
}

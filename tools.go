// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

//go:build tools

// Package main pins the ginkgo CLI, which runs the store integration suite
// (ginkgo -tags integration ./internal/store), to the version in go.mod.
package main

import (
	_ "github.com/onsi/ginkgo/v2/ginkgo"
)

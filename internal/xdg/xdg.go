// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

// Package xdg provides XDG Base Directory paths for QuillPress.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "quillpress"

// ConfigFileName is the name of the config file inside ConfigDir.
const ConfigFileName = "config.yaml"

// ConfigDir returns the XDG config directory for quillpress.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return "", oops.Code("XDG_HOME_UNSET").Errorf("neither XDG_CONFIG_HOME nor HOME is set")
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// DefaultConfigFile returns the config file path when one exists in ConfigDir.
// ok is false when no such file is present.
func DefaultConfigFile() (path string, ok bool) {
	dir, err := ConfigDir()
	if err != nil {
		return "", false
	}
	path = filepath.Join(dir, ConfigFileName)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}

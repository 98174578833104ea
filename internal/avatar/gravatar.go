// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuillPress Contributors

// Package avatar looks up profile images for new accounts.
package avatar

import (
	"context"
	"crypto/md5" //nolint:gosec // gravatar identifies addresses by md5
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Defaults for the Gravatar client.
const (
	DefaultBaseURL = "//www.gravatar.com/avatar/"
	DefaultTimeout = 2 * time.Second
)

// Gravatar resolves avatar URLs against the Gravatar service.
type Gravatar struct {
	baseURL string
	scheme  string
	client  *http.Client
}

// Option configures a Gravatar client.
type Option func(*Gravatar)

// WithBaseURL overrides the avatar base URL. A scheme-relative URL is probed over https.
func WithBaseURL(baseURL string) Option {
	return func(g *Gravatar) {
		if baseURL != "" {
			g.baseURL = baseURL
		}
	}
}

// WithHTTPClient sets the HTTP client used for probing.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gravatar) {
		if client != nil {
			g.client = client
		}
	}
}

// NewGravatar creates a Gravatar client whose probes give up after timeout.
func NewGravatar(timeout time.Duration, opts ...Option) *Gravatar {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	g := &Gravatar{
		baseURL: DefaultBaseURL,
		scheme:  "https:",
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// URL returns the avatar URL for email. It does not check the image exists.
func (g *Gravatar) URL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email)))) //nolint:gosec // not used for security
	return g.baseURL + hex.EncodeToString(sum[:]) + "?d=404"
}

// Lookup returns the avatar URL for email, or "" when Gravatar has no image for it.
// Any answer other than 404 counts as an image.
func (g *Gravatar) Lookup(ctx context.Context, email string) (string, error) {
	url := g.URL(email)
	probe := url
	if strings.HasPrefix(probe, "//") {
		probe = g.scheme + probe
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe, nil)
	if err != nil {
		return "", oops.Code("AVATAR_LOOKUP_FAILED").Wrap(err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return "", oops.Code("AVATAR_LOOKUP_FAILED").With("url", url).Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only probe

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	return url, nil
}

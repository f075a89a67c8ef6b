// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package directory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
)

// Credentials is a service account key with domain-wide delegation plus the
// administrator it impersonates.
type Credentials struct {
	ServiceAccountJSON []byte
	AdminSubject       string
}

// LoadCredentials reads a service account key file. A missing path, file or
// subject yields an error wrapping ErrNoCredentials.
func LoadCredentials(path, subject string) (*Credentials, error) {
	path = strings.TrimSpace(path)
	subject = strings.TrimSpace(subject)
	if path == "" {
		return nil, fmt.Errorf("%w: credentials file not set", ErrNoCredentials)
	}
	if subject == "" {
		return nil, fmt.Errorf("%w: admin subject not set", ErrNoCredentials)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoCredentials, path)
		}
		return nil, fmt.Errorf("failed to read directory credentials: %w", err)
	}
	return &Credentials{ServiceAccountJSON: data, AdminSubject: subject}, nil
}

// TokenSource returns a read-only Admin SDK token source impersonating the
// admin subject.
func (c *Credentials) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	cfg, err := google.JWTConfigFromJSON(c.ServiceAccountJSON, admin.AdminDirectoryUserReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("invalid service account key: %w", err)
	}
	cfg.Subject = c.AdminSubject
	return cfg.TokenSource(ctx), nil
}

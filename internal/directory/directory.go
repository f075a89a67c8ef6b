// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package directory reads account status from the organization's directory
// service. Only the Google Workspace Admin SDK is implemented.
package directory

import (
	"context"
	"errors"
)

var (
	// ErrNoCredentials is returned when no directory credentials are configured.
	ErrNoCredentials = errors.New("no directory credentials configured")
	// ErrFetch wraps every failure to read the user list.
	ErrFetch = errors.New("directory fetch failed")
)

// Status is the directory's view of one account.
type Status struct {
	Suspended bool
}

// Client returns the status of every account in a domain, keyed by
// lowercased email address. An address missing from the map is not known
// to the directory. Implementations return either the complete map or an
// error wrapping ErrFetch, never a partial result.
type Client interface {
	FetchUserStatuses(ctx context.Context, domain string) (map[string]Status, error)
}

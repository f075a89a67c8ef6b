// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package directory

import (
	"context"
	"fmt"
	"strings"

	clog "github.com/charmbracelet/log"
	"github.com/toeirei/ufo/internal/logging"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/option"
)

const pageSize = 500

// GoogleClient lists users through the Admin SDK Directory API.
type GoogleClient struct {
	svc    *admin.Service
	logger *clog.Logger
}

var _ Client = (*GoogleClient)(nil)

// NewGoogleClient builds a client. With non-nil creds the requests are
// authorized by the impersonated service account; extra options are
// applied after that.
func NewGoogleClient(ctx context.Context, creds *Credentials, logger *clog.Logger, opts ...option.ClientOption) (*GoogleClient, error) {
	if creds != nil {
		ts, err := creds.TokenSource(ctx)
		if err != nil {
			return nil, err
		}
		opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	}
	svc, err := admin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory service: %w", err)
	}
	return &GoogleClient{svc: svc, logger: logging.Or(logger)}, nil
}

// FetchUserStatuses pages through every user of domain. Aliases map to the
// status of the account they belong to.
func (c *GoogleClient) FetchUserStatuses(ctx context.Context, domain string) (map[string]Status, error) {
	out := make(map[string]Status)
	pages := 0
	err := c.svc.Users.List().
		Domain(domain).
		MaxResults(pageSize).
		Projection("basic").
		Pages(ctx, func(page *admin.Users) error {
			pages++
			for _, u := range page.Users {
				st := Status{Suspended: u.Suspended}
				if email := strings.ToLower(strings.TrimSpace(u.PrimaryEmail)); email != "" {
					out[email] = st
				}
				for _, alias := range u.Aliases {
					out[strings.ToLower(strings.TrimSpace(alias))] = st
				}
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("%w: list users of %s: %v", ErrFetch, domain, err)
	}
	c.logger.Debug("directory users fetched", "domain", domain, "accounts", len(out), "pages", pages)
	return out, nil
}

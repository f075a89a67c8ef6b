// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"

	"github.com/toeirei/ufo/internal/model"
)

// Store is the entity store shared by distribution, reconciliation and the
// admin CLI. Every save or delete is individually atomic.
type Store interface {
	// User methods
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// SaveUser inserts when u.ID is zero and updates otherwise. On insert the
	// assigned ID is written back to u.
	SaveUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id int64) error

	// Proxy server methods
	ListProxyServers(ctx context.Context) ([]model.ProxyServer, error)
	GetProxyServer(ctx context.Context, address string) (*model.ProxyServer, error)
	SaveProxyServer(ctx context.Context, p *model.ProxyServer) error
	DeleteProxyServer(ctx context.Context, id int64) error

	// Config methods. GetConfig creates the singleton row on first access.
	GetConfig(ctx context.Context) (model.Config, error)
	SaveConfig(ctx context.Context, c model.Config) error

	// ExportSnapshot reads all entities in one transaction.
	ExportSnapshot(ctx context.Context) (*model.Snapshot, error)

	Close() error
}

var _ Store = (*BunStore)(nil)

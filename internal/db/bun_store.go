// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/toeirei/ufo/internal/model"
	"github.com/uptrace/bun"
)

// BunStore implements Store on top of a *bun.DB for every supported backend.
type BunStore struct {
	bun    *bun.DB
	dbType string
}

// Type returns the backend name ("sqlite", "postgres", "mysql").
func (s *BunStore) Type() string { return s.dbType }

// BunDB returns the underlying *bun.DB.
func (s *BunStore) BunDB() *bun.DB { return s.bun }

// Close closes the underlying connection pool.
func (s *BunStore) Close() error { return s.bun.Close() }

// ListUsers returns all users ordered by id.
func (s *BunStore) ListUsers(ctx context.Context) ([]model.User, error) {
	var ums []UserModel
	if err := s.bun.NewSelect().Model(&ums).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(ums))
	for _, m := range ums {
		out = append(out, userModelToModel(m))
	}
	return out, nil
}

// GetUserByEmail returns ErrNotFound when no user has this email.
func (s *BunStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var m UserModel
	if err := s.bun.NewSelect().Model(&m).Where("email = ?", email).Limit(1).Scan(ctx); err != nil {
		return nil, MapDBError(err)
	}
	u := userModelToModel(m)
	return &u, nil
}

// SaveUser inserts or updates u. A clashing email yields ErrDuplicateKey.
func (s *BunStore) SaveUser(ctx context.Context, u *model.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	m := userToModel(*u)
	if u.ID == 0 {
		if _, err := s.bun.NewInsert().Model(m).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
			return MapDBError(err)
		}
		u.ID = m.ID
		return nil
	}
	res, err := s.bun.NewUpdate().Model(m).WherePK().Exec(ctx)
	return s.checkUpdated(ctx, res, err, (*UserModel)(nil), m.ID)
}

// DeleteUser removes a user by id.
func (s *BunStore) DeleteUser(ctx context.Context, id int64) error {
	return requireAffected(s.bun.NewDelete().Model((*UserModel)(nil)).Where("id = ?", id).Exec(ctx))
}

// ListProxyServers returns all proxy servers ordered by id.
func (s *BunStore) ListProxyServers(ctx context.Context) ([]model.ProxyServer, error) {
	var pms []ProxyServerModel
	if err := s.bun.NewSelect().Model(&pms).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.ProxyServer, 0, len(pms))
	for _, m := range pms {
		out = append(out, proxyServerModelToModel(m))
	}
	return out, nil
}

// GetProxyServer looks a server up by its address.
func (s *BunStore) GetProxyServer(ctx context.Context, address string) (*model.ProxyServer, error) {
	var m ProxyServerModel
	if err := s.bun.NewSelect().Model(&m).Where("address = ?", address).Limit(1).Scan(ctx); err != nil {
		return nil, MapDBError(err)
	}
	p := proxyServerModelToModel(m)
	return &p, nil
}

// SaveProxyServer inserts or updates p. A clashing address yields ErrDuplicateKey.
func (s *BunStore) SaveProxyServer(ctx context.Context, p *model.ProxyServer) error {
	if p == nil {
		return errors.New("nil proxy server")
	}
	m := proxyServerToModel(*p)
	if p.ID == 0 {
		if _, err := s.bun.NewInsert().Model(m).ExcludeColumn("id").Returning("id").Exec(ctx); err != nil {
			return MapDBError(err)
		}
		p.ID = m.ID
		return nil
	}
	res, err := s.bun.NewUpdate().Model(m).WherePK().Exec(ctx)
	return s.checkUpdated(ctx, res, err, (*ProxyServerModel)(nil), m.ID)
}

// DeleteProxyServer removes a proxy server by id.
func (s *BunStore) DeleteProxyServer(ctx context.Context, id int64) error {
	return requireAffected(s.bun.NewDelete().Model((*ProxyServerModel)(nil)).Where("id = ?", id).Exec(ctx))
}

// GetConfig returns the singleton Config, creating it with every action set
// to nothing when the row does not exist yet.
func (s *BunStore) GetConfig(ctx context.Context) (model.Config, error) {
	var m ConfigModel
	err := s.bun.NewSelect().Model(&m).Where("id = ?", model.ConfigID).Limit(1).Scan(ctx)
	if err == nil {
		return configModelToModel(m), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Config{}, err
	}

	def := model.DefaultConfig()
	if err := s.insertConfig(ctx, def); err != nil && !errors.Is(err, ErrDuplicateKey) {
		return model.Config{}, fmt.Errorf("failed to create config: %w", err)
	}
	// A concurrent caller may have won the insert; read back what is stored.
	if err := s.bun.NewSelect().Model(&m).Where("id = ?", model.ConfigID).Limit(1).Scan(ctx); err != nil {
		return model.Config{}, err
	}
	return configModelToModel(m), nil
}

func (s *BunStore) insertConfig(ctx context.Context, c model.Config) error {
	m := configToModel(c)
	_, err := ExecRaw(ctx, s.bun,
		"INSERT INTO config (id, domain, user_revoke_action, user_delete_action, user_unrevoke_action, user_undelete_action) VALUES (?, ?, ?, ?, ?, ?)",
		m.ID, m.Domain, m.UserRevokeAction, m.UserDeleteAction, m.UserUnrevokeAction, m.UserUndeleteAction)
	return MapDBError(err)
}

// SaveConfig persists c to the singleton row.
func (s *BunStore) SaveConfig(ctx context.Context, c model.Config) error {
	if _, err := s.GetConfig(ctx); err != nil {
		return err
	}
	_, err := s.bun.NewUpdate().Model(configToModel(c)).ExcludeColumn("id").Where("id = ?", model.ConfigID).Exec(ctx)
	return MapDBError(err)
}

// ExportSnapshot reads config, users and proxy servers inside a single
// read transaction so the snapshot is consistent.
func (s *BunStore) ExportSnapshot(ctx context.Context) (*model.Snapshot, error) {
	// Make sure the config row exists before opening the transaction.
	if _, err := s.GetConfig(ctx); err != nil {
		return nil, err
	}

	tx, err := s.bun.BeginTx(ctx, &sql.TxOptions{ReadOnly: s.dbType != "sqlite"})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var cm ConfigModel
	if err := tx.NewSelect().Model(&cm).Where("id = ?", model.ConfigID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("export config: %w", err)
	}
	var ums []UserModel
	if err := tx.NewSelect().Model(&ums).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("export users: %w", err)
	}
	var pms []ProxyServerModel
	if err := tx.NewSelect().Model(&pms).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("export proxy servers: %w", err)
	}

	snap := &model.Snapshot{
		SchemaVersion: model.SnapshotSchemaVersion,
		ExportedAt:    time.Now().UTC(),
		Config:        configModelToModel(cm),
		Users:         make([]model.User, 0, len(ums)),
		ProxyServers:  make([]model.ProxyServer, 0, len(pms)),
	}
	for _, m := range ums {
		snap.Users = append(snap.Users, userModelToModel(m))
	}
	for _, m := range pms {
		snap.ProxyServers = append(snap.ProxyServers, proxyServerModelToModel(m))
	}
	return snap, tx.Commit()
}

// checkUpdated maps a zero-row update to ErrNotFound. MySQL reports changed
// rows rather than matched rows, so a zero count is confirmed with a lookup.
func (s *BunStore) checkUpdated(ctx context.Context, res sql.Result, err error, table any, id int64) error {
	if err != nil {
		return MapDBError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	exists, err := s.bun.NewSelect().Model(table).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"database/sql"

	"github.com/toeirei/ufo/internal/model"
	"github.com/toeirei/ufo/internal/security"
	"github.com/toeirei/ufo/internal/sshkey"
	"github.com/uptrace/bun"
)

// UserModel maps the users table.
type UserModel struct {
	bun.BaseModel `bun:"table:users"`
	ID            int64          `bun:"id,pk,autoincrement"`
	Email         string         `bun:"email"`
	Name          string         `bun:"name"`
	Domain        sql.NullString `bun:"domain"`
	KeyAlgorithm  string         `bun:"key_algorithm"`
	PrivateKey    []byte         `bun:"private_key"`
	PublicKey     []byte         `bun:"public_key"`
	IsKeyRevoked  bool           `bun:"is_key_revoked"`
	DidCronRevoke bool           `bun:"did_cron_revoke"`
}

// ProxyServerModel maps the proxy_servers table.
type ProxyServerModel struct {
	bun.BaseModel     `bun:"table:proxy_servers"`
	ID                int64  `bun:"id,pk,autoincrement"`
	Address           string `bun:"address"`
	Name              string `bun:"name"`
	SSHPrivateKeyType string `bun:"ssh_private_key_type"`
	SSHPrivateKey     []byte `bun:"ssh_private_key"`
	HostPublicKeyType string `bun:"host_public_key_type"`
	HostPublicKey     []byte `bun:"host_public_key"`
}

// ConfigModel maps the singleton config row.
type ConfigModel struct {
	bun.BaseModel      `bun:"table:config"`
	ID                 int64          `bun:"id,pk"`
	Domain             sql.NullString `bun:"domain"`
	UserRevokeAction   model.Action   `bun:"user_revoke_action"`
	UserDeleteAction   model.Action   `bun:"user_delete_action"`
	UserUnrevokeAction model.Action   `bun:"user_unrevoke_action"`
	UserUndeleteAction model.Action   `bun:"user_undelete_action"`
}

// --- Mapping helpers (centralized conversions) ---

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func userModelToModel(m UserModel) model.User {
	return model.User{
		ID:     m.ID,
		Email:  m.Email,
		Name:   m.Name,
		Domain: m.Domain.String,
		KeyPair: model.KeyPair{
			Algorithm:  sshkey.Algorithm(m.KeyAlgorithm),
			PrivateKey: security.FromBytes(m.PrivateKey),
			PublicKey:  m.PublicKey,
		},
		IsKeyRevoked:  m.IsKeyRevoked,
		DidCronRevoke: m.DidCronRevoke,
	}
}

func userToModel(u model.User) *UserModel {
	return &UserModel{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Domain:        nullString(u.Domain),
		KeyAlgorithm:  string(u.KeyPair.Algorithm),
		PrivateKey:    u.KeyPair.PrivateKey.Bytes(),
		PublicKey:     u.KeyPair.PublicKey,
		IsKeyRevoked:  u.IsKeyRevoked,
		DidCronRevoke: u.DidCronRevoke,
	}
}

func proxyServerModelToModel(m ProxyServerModel) model.ProxyServer {
	return model.ProxyServer{
		ID:                m.ID,
		Address:           m.Address,
		Name:              m.Name,
		SSHPrivateKeyType: sshkey.Algorithm(m.SSHPrivateKeyType),
		SSHPrivateKey:     security.FromBytes(m.SSHPrivateKey),
		HostPublicKeyType: sshkey.Algorithm(m.HostPublicKeyType),
		HostPublicKey:     m.HostPublicKey,
	}
}

func proxyServerToModel(p model.ProxyServer) *ProxyServerModel {
	return &ProxyServerModel{
		ID:                p.ID,
		Address:           p.Address,
		Name:              p.Name,
		SSHPrivateKeyType: string(p.SSHPrivateKeyType),
		SSHPrivateKey:     p.SSHPrivateKey.Bytes(),
		HostPublicKeyType: string(p.HostPublicKeyType),
		HostPublicKey:     p.HostPublicKey,
	}
}

func configModelToModel(m ConfigModel) model.Config {
	return model.Config{
		Domain:             m.Domain.String,
		UserRevokeAction:   m.UserRevokeAction,
		UserDeleteAction:   m.UserDeleteAction,
		UserUnrevokeAction: m.UserUnrevokeAction,
		UserUndeleteAction: m.UserUndeleteAction,
	}
}

func configToModel(c model.Config) *ConfigModel {
	return &ConfigModel{
		ID:                 model.ConfigID,
		Domain:             nullString(c.Domain),
		UserRevokeAction:   c.UserRevokeAction,
		UserDeleteAction:   c.UserDeleteAction,
		UserUnrevokeAction: c.UserUnrevokeAction,
		UserUndeleteAction: c.UserUndeleteAction,
	}
}

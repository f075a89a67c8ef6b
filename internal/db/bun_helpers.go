// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

// execRawProvider accepts either *bun.DB or bun.Tx; both expose NewRaw.
type execRawProvider interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

// ExecRaw executes a raw SQL statement. Bun rewrites ? placeholders for the
// active dialect, so the same query text works on every backend.
func ExecRaw(ctx context.Context, exec execRawProvider, query string, args ...any) (sql.Result, error) {
	return exec.NewRaw(query, args...).Exec(ctx)
}

// QueryRawInto runs a raw query and scans the result into dest.
func QueryRawInto(ctx context.Context, exec execRawProvider, dest any, query string, args ...any) error {
	return exec.NewRaw(query, args...).Scan(ctx, dest)
}

// requireAffected turns a zero-row update or delete into ErrNotFound.
func requireAffected(res sql.Result, err error) error {
	if err != nil {
		return MapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateKey is returned when a save would violate a uniqueness
	// constraint (user email, proxy server address).
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNotFound is returned when a lookup or update matches no row.
	ErrNotFound = errors.New("not found")
)

// MapDBError inspects low-level driver errors and maps common constraint
// violations to package-level sentinel errors. This is a conservative,
// string-based mapping to avoid importing SQL driver packages here. The
// driver message is kept in the returned error for logging.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	le := strings.ToLower(err.Error())
	// MySQL duplicate entry, Postgres unique violation (23505), SQLite unique constraint
	if strings.Contains(le, "duplicate") || strings.Contains(le, "unique") || strings.Contains(le, "23505") || strings.Contains(le, "1062") {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

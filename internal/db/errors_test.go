// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"database/sql"
	"errors"
	"strings"
	"testing"
)

func TestMapDBError_DuplicateStrings(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"mysql duplicate entry", errors.New("Error 1062: Duplicate entry 'x' for key 'users.email'")},
		{"postgres unique violation", errors.New("ERROR: duplicate key value violates unique constraint \"users_email_key\" (SQLSTATE 23505)")},
		{"sqlite unique constraint", errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mapped := MapDBError(c.err)
			if !errors.Is(mapped, ErrDuplicateKey) {
				t.Fatalf("expected ErrDuplicateKey, got: %v", mapped)
			}
			if !strings.Contains(mapped.Error(), c.err.Error()) {
				t.Fatalf("driver message lost: %v", mapped)
			}
		})
	}
}

func TestMapDBError_Passthrough(t *testing.T) {
	if MapDBError(nil) != nil {
		t.Fatal("MapDBError(nil) should be nil")
	}
	if !errors.Is(MapDBError(sql.ErrNoRows), ErrNotFound) {
		t.Fatal("sql.ErrNoRows should map to ErrNotFound")
	}
	e := errors.New("some network error")
	if mapped := MapDBError(e); mapped != e {
		t.Fatalf("expected original error unchanged, got: %v", mapped)
	}
}

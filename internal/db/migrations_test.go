// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"io/fs"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func TestRunMigrationsSqlite(t *testing.T) {
	dbConn, err := sql.Open("sqlite", "file:test_migrations?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	bdb := bun.NewDB(dbConn, sqlitedialect.New())
	defer func() { _ = bdb.Close() }()
	ctx := context.Background()

	if err := RunMigrations(ctx, bdb, "sqlite"); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	// Re-running is a no-op.
	if err := RunMigrations(ctx, bdb, "sqlite"); err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}

	var n int
	if err := dbConn.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("query schema_migrations failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 migrations applied, got %d", n)
	}
	for _, table := range []string{"users", "proxy_servers", "config"} {
		var name string
		if err := dbConn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestEmbeddedMigrations_SameVersionsPerBackend(t *testing.T) {
	versions := map[string][]string{}
	for _, typ := range SupportedTypes() {
		entries, err := fs.ReadDir(embeddedMigrations, "migrations/"+typ)
		if err != nil {
			t.Fatalf("no migrations for %s: %v", typ, err)
		}
		for _, e := range entries {
			versions[typ] = append(versions[typ], e.Name())
		}
	}
	want := versions["sqlite"]
	for typ, got := range versions {
		if len(got) != len(want) {
			t.Fatalf("%s has %d migrations, sqlite has %d", typ, len(got), len(want))
		}
		for i := range got {
			if got[i] != want[i] {
				t.Errorf("%s migration %d = %s, want %s", typ, i, got[i], want[i])
			}
		}
	}
}

func TestNewStoreFromDSN_UnsupportedType(t *testing.T) {
	if _, err := NewStoreFromDSN("oracle", "x"); err == nil {
		t.Fatal("expected error for unsupported database type")
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\nCREATE INDEX i ON a (x);\n")
	if len(got) != 2 || got[1] != "CREATE INDEX i ON a (x)" {
		t.Fatalf("unexpected statements: %q", got)
	}
}

func TestRunDBMaintenanceSqlite_Smoke(t *testing.T) {
	if err := RunDBMaintenance(context.Background(), "sqlite", "file:test_maint?mode=memory&cache=shared"); err != nil {
		t.Fatalf("RunDBMaintenance failed: %v", err)
	}
}

func TestLoadMigrations_OrderedAndSplit(t *testing.T) {
	ms, err := loadMigrations("postgres")
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if len(ms) != 2 || ms[0].version >= ms[1].version {
		t.Fatalf("unexpected migration order: %+v", ms)
	}
	for _, m := range ms {
		if len(m.statements) == 0 {
			t.Errorf("migration %s has no statements", m.version)
		}
	}
	if _, err := loadMigrations("oracle"); err == nil {
		t.Fatal("expected error for unknown database type")
	}
}

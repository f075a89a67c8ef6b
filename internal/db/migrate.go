// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

//go:embed migrations
var embeddedMigrations embed.FS

// schemaMigration records one applied migration file.
type schemaMigration struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version   string    `bun:"version,pk,type:varchar(191)"`
	AppliedAt time.Time `bun:"applied_at,nullzero"`
}

type migration struct {
	version    string
	statements []string
}

// loadMigrations returns the embedded *.up.sql files for dbType in version
// order.
func loadMigrations(dbType string) ([]migration, error) {
	dir := path.Join("migrations", dbType)
	entries, err := fs.ReadDir(embeddedMigrations, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no migrations for database type %q", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations (%s): %w", dir, err)
	}

	var out []migration
	for _, e := range entries {
		version, ok := strings.CutSuffix(e.Name(), ".up.sql")
		if e.IsDir() || !ok {
			continue
		}
		data, err := embeddedMigrations.ReadFile(path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", e.Name(), err)
		}
		out = append(out, migration{version: version, statements: splitStatements(string(data))})
	}
	slices.SortFunc(out, func(a, b migration) int { return strings.Compare(a.version, b.version) })
	return out, nil
}

// RunMigrations applies the embedded migrations for dbType that are not yet
// recorded in schema_migrations. Each file runs in its own transaction.
func RunMigrations(ctx context.Context, db *bun.DB, dbType string) error {
	migrations, err := loadMigrations(dbType)
	if err != nil {
		return err
	}
	if _, err := db.NewCreateTable().Model((*schemaMigration)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := db.NewSelect().Model((*schemaMigration)(nil)).Where("version = ?", m.version).Exists(ctx)
		if err != nil {
			return fmt.Errorf("failed to check migration version %s: %w", m.version, err)
		}
		if applied {
			continue
		}
		err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to execute migration %s: %w", m.version, err)
				}
			}
			rec := &schemaMigration{Version: m.version, AppliedAt: time.Now().UTC()}
			if _, err := tx.NewInsert().Model(rec).Exec(ctx); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		dbLogf("db: applied migration %s", m.version)
	}
	return nil
}

// splitStatements splits a migration file on semicolons. The migration files
// never contain semicolons inside literals.
func splitStatements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

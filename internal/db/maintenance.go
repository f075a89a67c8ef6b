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
)

// maintenanceTimeout bounds one RunDBMaintenance call.
const maintenanceTimeout = 2 * time.Minute

var maintenanceByType = map[string]func(ctx context.Context, db *sql.DB) error{
	"sqlite":   maintainSQLite,
	"postgres": maintainPostgres,
	"mysql":    maintainMySQL,
}

// RunDBMaintenance performs engine-specific housekeeping on its own
// connection: PRAGMA optimize, VACUUM, a WAL checkpoint and an integrity
// check for SQLite, VACUUM ANALYZE for PostgreSQL and OPTIMIZE TABLE for
// every MySQL table.
func RunDBMaintenance(ctx context.Context, dbType, dsn string) error {
	name, err := driverName(dbType)
	if err != nil {
		return err
	}
	sqlDB, err := sqlOpenFunc(name, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database for maintenance: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
	defer cancel()
	start := time.Now()
	if err := maintenanceByType[dbType](ctx, sqlDB); err != nil {
		return err
	}
	dbLogf("db: %s maintenance finished in %s", dbType, time.Since(start))
	return nil
}

func maintainSQLite(ctx context.Context, db *sql.DB) error {
	// optimize is missing from some builds.
	if _, err := db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		dbLogf("db: sqlite optimize failed (ignored): %v", err)
	}
	if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("sqlite vacuum failed: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	var res string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&res); err == nil && res != "ok" {
		return fmt.Errorf("sqlite integrity_check failed: %s", res)
	}
	return nil
}

func maintainPostgres(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "VACUUM ANALYZE"); err != nil {
		return fmt.Errorf("postgres vacuum failed: %w", err)
	}
	return nil
}

func maintainMySQL(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return fmt.Errorf("mysql show tables failed: %w", err)
	}
	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			_ = rows.Close()
			return fmt.Errorf("mysql read table name failed: %w", err)
		}
		tables = append(tables, table)
	}
	_ = rows.Close()

	var errs []error
	for _, table := range tables {
		if _, err := db.ExecContext(ctx, "OPTIMIZE TABLE `"+table+"`"); err != nil {
			dbLogf("db: mysql optimize table %s failed: %v", table, err)
			errs = append(errs, fmt.Errorf("optimize %s: %w", table, err))
		}
	}
	return errors.Join(errs...)
}

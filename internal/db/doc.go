// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db is the entity store for users, proxy servers and the singleton
// reconciliation Config.
//
// A single Bun-backed implementation serves SQLite (modernc), PostgreSQL
// (pgx) and MySQL. Schema changes live in embedded per-backend migrations
// under migrations/<type>/ and are applied when a store is opened.
//
// Uniqueness violations from any driver are mapped to ErrDuplicateKey by
// MapDBError; lookups that match no row return ErrNotFound.
//
// Testing notes
//   - Use NewStoreFromDSN("sqlite", "file:<name>?mode=memory&cache=shared")
//     for tests that need real SQL semantics and migrations.
package db

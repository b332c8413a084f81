// Package store opens the databases split entities live in and provides the
// session-layer transaction the engine borrows.
//
// # Drivers
//
//   - sqlite3: github.com/mattn/go-sqlite3 (cgo, default)
//   - sqlite:  modernc.org/sqlite (pure Go)
//   - pgx:     github.com/jackc/pgx/v5/stdlib (PostgreSQL)
//
// # SQLite Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// # Transactions
//
// Tx reports a concrete isolation level, never sql.LevelDefault: SQLite
// transactions are serializable unless read-uncommitted was requested, and a
// PostgreSQL transaction begun at the default level asks the server which
// level it got. A Tx marked rollback-only refuses to commit and rolls back
// instead.
package store

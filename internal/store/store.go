package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Supported database/sql driver names.
const (
	DriverSQLite3  = "sqlite3"
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// MemoryDSN opens a private in-memory SQLite database.
const MemoryDSN = ":memory:"

// Drivers lists the accepted driver names.
func Drivers() []string {
	return []string{DriverSQLite3, DriverSQLite, DriverPostgres}
}

// Store owns a database handle. It hands out transactions; it never runs
// split writes itself.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to dsn with the named driver. Empty driver means sqlite3.
//
// SQLite databases are configured with:
//   - A single connection, so an in-memory database survives and writers never contend
//   - WAL mode, NORMAL synchronous mode, 5-second busy timeout, foreign keys
func Open(driver, dsn string) (*Store, error) {
	if driver == "" {
		driver = DriverSQLite3
	}
	if !validDriver(driver) {
		return nil, fmt.Errorf("unknown driver %q (valid: %s)", driver, strings.Join(Drivers(), ", "))
	}
	if dsn == "" && isSQLite(driver) {
		dsn = MemoryDSN
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify connection works
	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if isSQLite(driver) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - split writes belong inside a Tx.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the driver name the store was opened with.
func (s *Store) Driver() string {
	return s.driver
}

// Exec runs a script outside any transaction (fixtures, DDL).
func (s *Store) Exec(ctx context.Context, script string) error {
	if strings.TrimSpace(script) == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("exec script: %w", err)
	}
	return nil
}

// QueryInt64 runs a single-value query, as used by final-state assertions.
func (s *Store) QueryInt64(ctx context.Context, query string, args ...any) (int64, error) {
	var n sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("query %q: %w", query, err)
	}
	return n.Int64, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

func validDriver(driver string) bool {
	for _, d := range Drivers() {
		if d == driver {
			return true
		}
	}
	return false
}

func isSQLite(driver string) bool {
	return driver == DriverSQLite3 || driver == DriverSQLite
}

package store

import (
	"path/filepath"
	"testing"
)

// createTestStore opens a file-backed SQLite store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(DriverSQLite3, path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// animalSchema is a split entity: animal is the base table, dog the extension.
const animalSchema = `
CREATE TABLE animal (
	id      INTEGER PRIMARY KEY,
	name    TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE dog (
	id      INTEGER PRIMARY KEY REFERENCES animal(id),
	breed   TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1
);
`

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(DriverSQLite3, path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_DefaultsToInMemorySQLite3(t *testing.T) {
	s, err := Open("", "")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, DriverSQLite3, s.Driver())
	require.NoError(t, s.Exec(context.Background(), animalSchema))

	n, err := s.QueryInt64(context.Background(), "SELECT COUNT(*) FROM animal")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestOpen_PureGoDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modernc.db")

	s, err := Open(DriverSQLite, path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Exec(context.Background(), animalSchema))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "oracle"`)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(DriverSQLite3, "/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

func TestExec_EmptyScript(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.Exec(context.Background(), "  \n"))
}

func TestExec_Failure(t *testing.T) {
	s := createTestStore(t)
	err := s.Exec(context.Background(), "CREATE TABLE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exec script")
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tc := range tests {
		if err := s.verifyPragma(tc.name, tc.expected); err != nil {
			t.Error(err)
		}
	}
}

package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens a sqlite database that is closed when the test ends.
// If path is empty the database lives in memory, in that case the pool is
// limited to a single connection since every connection to `:memory:` is a
// separate database.
func OpenSQLite(t testing.TB, path string) *sql.DB {
	dbpath := ":memory:"
	if path != "" {
		dbpath = path
	}
	database, err := sql.Open("sqlite", dbpath)
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		database.SetMaxOpenConns(1)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// WriteFile writes contents to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

// Package store provides SQLite storage for upload metadata and detection run history.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the SQLite database connection.
type Store struct {
	db   *sql.DB
	path string
}

// pragmas are applied by the driver to every pooled connection. Sessions
// record runs concurrently, so writers wait on a locked database instead of
// failing with SQLITE_BUSY.
var pragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// filePragmas apply only to on-disk databases.
var filePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// dsn appends the pragmas to dbPath in the form modernc.org/sqlite expects.
func dsn(dbPath string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	if dbPath != ":memory:" {
		for _, p := range filePragmas {
			q.Add("_pragma", p)
		}
	}
	return dbPath + "?" + q.Encode()
}

// New opens the SQLite database at dbPath, applies pragmas and runs migrations.
// The path ":memory:" gives a private in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

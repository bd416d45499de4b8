package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SchemaVersion is the history layout this build reads and writes. It is
// stored in PRAGMA user_version.
const SchemaVersion = 1

// VersionError reports a database whose history layout this build does not
// understand.
type VersionError struct {
	Path    string
	Version int
}

func (e *VersionError) Error() string {
	if e.Version == 0 {
		return fmt.Sprintf("%s is not a modelcore history database", e.Path)
	}
	return fmt.Sprintf("%s has history schema version %d, this build supports %d", e.Path, e.Version, SchemaVersion)
}

// Store provides durable storage for application history.
// Uses SQLite with WAL mode so history can be read while apply writes.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path and installs the
// schema. A database written by a newer layout is rejected.
//
// Every connection runs with WAL journaling, NORMAL sync, a 5 second busy
// timeout and foreign keys enforced.
func Open(path string) (*Store, error) {
	db, err := connect(path, false)
	if err != nil {
		return nil, err
	}
	if err := install(db, path); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing history database for queries only. The
// schema is not installed; the database must already carry SchemaVersion.
func OpenReadOnly(path string) (*Store, error) {
	db, err := connect(path, true)
	if err != nil {
		return nil, err
	}
	version, err := userVersion(db)
	if err == nil && version != SchemaVersion {
		err = &VersionError{Path: path, Version: version}
	}
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// connect opens a single-connection pool. Pragmas travel in the DSN so the
// driver applies them to every connection it opens.
func connect(path string, queryOnly bool) (*sql.DB, error) {
	params := url.Values{}
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")
	if queryOnly {
		params.Set("_query_only", "on")
	} else {
		params.Set("_journal_mode", "WAL")
		params.Set("_synchronous", "NORMAL")
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	return db, nil
}

// install applies schema.sql and stamps the version in one transaction.
func install(db *sql.DB, path string) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return &VersionError{Path: path, Version: version}
	}

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("install history schema: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("install history schema: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("install history schema: %w", err)
	}
	return tx.Commit()
}

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read history schema version: %w", err)
	}
	return version, nil
}

// Package storage provides SQLite database connectivity and data access.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const openTimeout = 5 * time.Second

// DB is the reservation store's SQLite handle.
type DB struct {
	*sql.DB
	path string
}

// sqliteDSN appends the connection options to path. Export requests read
// while a sync writes, so the journal is WAL. Write transactions take the
// lock up front (_txlock=immediate) so a reconcile pass never fails
// halfway when it upgrades from reading to writing.
func sqliteDSN(path string) string {
	opts := url.Values{}
	opts.Set("_foreign_keys", "on")
	opts.Set("_journal_mode", "WAL")
	opts.Set("_busy_timeout", "5000")
	opts.Set("_synchronous", "NORMAL")
	opts.Set("_txlock", "immediate")
	return path + "?" + opts.Encode()
}

// NewDB opens the SQLite file at path, creating its directory if needed.
func NewDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connecting to database %s: %w", path, err)
	}

	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	return &DB{DB: sqlDB, path: path}, nil
}

// Path is the database file location.
func (db *DB) Path() string {
	return db.path
}

// Transaction runs fn in a transaction, committing when it returns nil and
// rolling back on an error or a panic.
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

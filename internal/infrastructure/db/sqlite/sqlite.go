// Package sqlite is a single-node ProjectStore backed by an embedded SQLite
// database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrLocked is returned when another process holds the data directory.
var ErrLocked = errors.New("sqlite: database is locked by another process")

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

// DB wraps the SQL connection together with the data-directory lock.
type DB struct {
	*sql.DB
	lock *flock.Flock
}

// Open creates the parent directory, takes an exclusive lock next to the
// database file and runs the embedded migrations.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite has a single writer.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("connect database: %w", err)
	}

	db := &DB{DB: sqlDB, lock: lock}
	if err := db.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetLogger(log.New(io.Discard, "", 0))
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	return goose.Up(db.DB, "migrations")
}

// Close closes the connection and releases the lock file.
func (db *DB) Close() error {
	err := db.DB.Close()
	if uerr := db.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}

// Transaction runs fn inside a transaction, rolling back when it fails.
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

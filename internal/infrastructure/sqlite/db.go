// Package sqlite persists validation run history in a SQLite database.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/provchain/internal/history"
	"github.com/zjrosen/provchain/internal/log"
)

// DB owns the SQLite connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens (creating if needed) the database at path and brings its schema up to date.
// An existing database is first copied to path+".bak".
func NewDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	info, statErr := os.Stat(path)
	existed := statErr == nil && info.Size() > 0

	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(wal)")
	q.Add("_pragma", "foreign_keys(1)")

	conn, err := sql.Open("sqlite3", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if existed {
		if err := backup(conn, path+".bak"); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	if err := runMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	log.Debug(log.CatDB, "opened history database", "path", path)
	return &DB{conn: conn}, nil
}

// backup writes a consistent copy of the database to dest, replacing an older one.
func backup(conn *sql.DB, dest string) error {
	if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove old backup: %w", err)
	}
	if _, err := conn.Exec("VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("failed to back up database: %w", err)
	}
	log.Debug(log.CatDB, "backed up history database", "path", dest)
	return nil
}

// RunRepository returns the run history repository backed by this database.
func (db *DB) RunRepository() history.Repository {
	return newRunRepository(db.conn)
}

// Connection returns the underlying *sql.DB.
func (db *DB) Connection() *sql.DB {
	return db.conn
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/zjrosen/provchain/internal/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsTable = "schema_migrations"

// runMigrations brings conn up to the newest embedded migration.
func runMigrations(conn *sql.DB) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	target, err := newMigrationTarget(conn)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", target)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}
	m.Log = migrateLogger{}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	log.Debug(log.CatDB, "history schema ready", "version", version, "dirty", dirty)
	return nil
}

// migrationTarget is the database.Driver golang-migrate drives. It runs on the
// *sql.DB the repository already uses, so the ncruces driver serves both.
type migrationTarget struct {
	conn   *sql.DB
	locked atomic.Bool
}

var _ database.Driver = (*migrationTarget)(nil)

func newMigrationTarget(conn *sql.DB) (*migrationTarget, error) {
	_, err := conn.Exec(`CREATE TABLE IF NOT EXISTS ` + migrationsTable + ` (
		version INTEGER NOT NULL,
		dirty   INTEGER NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", migrationsTable, err)
	}
	return &migrationTarget{conn: conn}, nil
}

// Open is unused: the target is always built from an open connection.
func (t *migrationTarget) Open(string) (database.Driver, error) {
	return nil, errors.New("sqlite: open the database with NewDB")
}

// Close leaves the connection to its owner, DB.Close.
func (t *migrationTarget) Close() error { return nil }

// Lock guards against concurrent migrations within this process. Other processes
// are serialised by SQLite's own write lock and busy timeout.
func (t *migrationTarget) Lock() error {
	if !t.locked.CompareAndSwap(false, true) {
		return database.ErrLocked
	}
	return nil
}

func (t *migrationTarget) Unlock() error {
	if !t.locked.CompareAndSwap(true, false) {
		return database.ErrNotLocked
	}
	return nil
}

// Run executes one migration file inside a transaction.
func (t *migrationTarget) Run(migration io.Reader) error {
	query, err := io.ReadAll(migration)
	if err != nil {
		return err
	}

	tx, err := t.conn.Begin()
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}
	if _, err := tx.Exec(string(query)); err != nil {
		_ = tx.Rollback()
		return &database.Error{OrigErr: err, Err: "migration failed", Query: query}
	}
	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed", Query: query}
	}
	return nil
}

// SetVersion keeps exactly one row, or none for database.NilVersion when clean.
func (t *migrationTarget) SetVersion(version int, dirty bool) error {
	tx, err := t.conn.Begin()
	if err != nil {
		return &database.Error{OrigErr: err, Err: "transaction start failed"}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM ` + migrationsTable); err != nil {
		return &database.Error{OrigErr: err, Err: "clearing version failed"}
	}
	if version >= 0 || (version == database.NilVersion && dirty) {
		_, err := tx.Exec(`INSERT INTO `+migrationsTable+` (version, dirty) VALUES (?, ?)`, version, dirty)
		if err != nil {
			return &database.Error{OrigErr: err, Err: "recording version failed"}
		}
	}
	if err := tx.Commit(); err != nil {
		return &database.Error{OrigErr: err, Err: "transaction commit failed"}
	}
	return nil
}

func (t *migrationTarget) Version() (int, bool, error) {
	var (
		version int
		dirty   bool
	)
	err := t.conn.QueryRow(`SELECT version, dirty FROM `+migrationsTable+` LIMIT 1`).Scan(&version, &dirty)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return database.NilVersion, false, nil
	case err != nil:
		return 0, false, &database.Error{OrigErr: err, Err: "reading version failed"}
	}
	return version, dirty, nil
}

// Drop removes every user table, the version table included.
func (t *migrationTarget) Drop() error {
	rows, err := t.conn.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return err
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, name := range tables {
		if _, err := t.conn.Exec(`DROP TABLE IF EXISTS "` + name + `"`); err != nil {
			return fmt.Errorf("failed to drop %s: %w", name, err)
		}
	}
	return nil
}

// migrateLogger routes golang-migrate's progress lines into the debug log.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	log.Debug(log.CatDB, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (migrateLogger) Verbose() bool { return false }

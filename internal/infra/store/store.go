// Package store persists per-database choices in a local SQLite file.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Pin remembers how a database was last run.
type Pin struct {
	Database  string
	Version   string
	Sandbox   string
	Worktree  string
	Addons    []string
	UpdatedAt time.Time
}

type Store struct {
	db   *sql.DB
	path string
	Now  func() time.Time
}

// Open opens the store at path, creating and migrating it when needed.
// Use ":memory:" for an in-memory store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store dir: %w", err)
		}
		dsn = path + "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps an in-memory database alive across queries.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	s := &Store{db: db, path: path, Now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the pin of database; ok is false when none is stored.
func (s *Store) Get(ctx context.Context, database string) (Pin, bool, error) {
	pin := Pin{Database: database}
	var addons string
	err := s.db.QueryRowContext(ctx,
		`SELECT version, sandbox, worktree, addons, updated_at FROM pins WHERE db_name = ?`,
		database,
	).Scan(&pin.Version, &pin.Sandbox, &pin.Worktree, &addons, &pin.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Pin{}, false, nil
	}
	if err != nil {
		return Pin{}, false, fmt.Errorf("failed to read pin for %s: %w", database, err)
	}
	pin.Addons = splitAddons(addons)
	return pin, true, nil
}

// Save inserts or replaces the pin of pin.Database.
func (s *Store) Save(ctx context.Context, pin Pin) error {
	if strings.TrimSpace(pin.Database) == "" {
		return fmt.Errorf("pin has no database")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pins (db_name, version, sandbox, worktree, addons, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(db_name) DO UPDATE SET
		   version = excluded.version,
		   sandbox = excluded.sandbox,
		   worktree = excluded.worktree,
		   addons = excluded.addons,
		   updated_at = excluded.updated_at`,
		pin.Database, pin.Version, pin.Sandbox, pin.Worktree, strings.Join(pin.Addons, "\n"), s.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save pin for %s: %w", pin.Database, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, database string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pins WHERE db_name = ?`, database); err != nil {
		return fmt.Errorf("failed to delete pin for %s: %w", database, err)
	}
	return nil
}

// List returns every pin ordered by database name.
func (s *Store) List(ctx context.Context) ([]Pin, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT db_name, version, sandbox, worktree, addons, updated_at FROM pins ORDER BY db_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pins: %w", err)
	}
	defer rows.Close()
	var pins []Pin
	for rows.Next() {
		var pin Pin
		var addons string
		if err := rows.Scan(&pin.Database, &pin.Version, &pin.Sandbox, &pin.Worktree, &addons, &pin.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pin: %w", err)
		}
		pin.Addons = splitAddons(addons)
		pins = append(pins, pin)
	}
	return pins, rows.Err()
}

// Merge fills the empty fields of explicit from the stored pin.
func (p Pin) Merge(explicit Pin) Pin {
	out := explicit
	if out.Database == "" {
		out.Database = p.Database
	}
	if out.Version == "" {
		out.Version = p.Version
	}
	if out.Sandbox == "" {
		out.Sandbox = p.Sandbox
	}
	if out.Worktree == "" {
		out.Worktree = p.Worktree
	}
	if len(out.Addons) == 0 {
		out.Addons = p.Addons
	}
	return out
}

func splitAddons(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, "\n")
}

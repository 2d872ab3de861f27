// Package prefs persists per-user UI preferences in SQLite.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Keys and values understood by the UI.
const (
	KeyTheme = "theme"

	ThemeDark  = "dark"
	ThemeLight = "light"

	DefaultTheme = ThemeDark
)

// ErrInvalidTheme is returned by SetTheme for anything but dark or light.
var ErrInvalidTheme = errors.New("prefs: theme must be dark or light")

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	user_id    TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, key)
)`

// Store reads and writes preferences.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory store.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored value for key, reporting whether it exists.
func (s *Store) Get(ctx context.Context, userID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE user_id = ? AND key = ?`, userID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query preference: %w", err)
	}
	return value, true, nil
}

// Set upserts a value.
func (s *Store) Set(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, userID, key, value, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

// Theme returns the user's theme, or DefaultTheme when unset or unreadable.
func (s *Store) Theme(ctx context.Context, userID string) string {
	v, ok, err := s.Get(ctx, userID, KeyTheme)
	if err != nil || !ok || !ValidTheme(v) {
		return DefaultTheme
	}
	return v
}

// SetTheme stores the user's theme.
func (s *Store) SetTheme(ctx context.Context, userID, theme string) error {
	if !ValidTheme(theme) {
		return ErrInvalidTheme
	}
	return s.Set(ctx, userID, KeyTheme, theme)
}

// ValidTheme reports whether theme is a supported value.
func ValidTheme(theme string) bool {
	return theme == ThemeDark || theme == ThemeLight
}

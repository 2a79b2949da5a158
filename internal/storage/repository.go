package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Preferences are the UI settings kept between runs.
type Preferences struct {
	LastCategory string
	RelativeTime bool
}

type Repository struct {
	db *sql.DB
}

func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) Init(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS credentials (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  access_token TEXT NOT NULL,
  saved_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS preferences (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// CheckWritable fails when the database file cannot be written, e.g. a
// read-only mount, so startup can report it before the first sign-in.
func (r *Repository) CheckWritable(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS write_probe (id INTEGER)`); err != nil {
		return fmt.Errorf("database is not writable: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DROP TABLE write_probe`); err != nil {
		return fmt.Errorf("database is not writable: %w", err)
	}
	return nil
}

// LoadToken returns the stored access token, or "" when signed out.
func (r *Repository) LoadToken(ctx context.Context) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx, `SELECT access_token FROM credentials WHERE id = 1`).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return token, nil
}

func (r *Repository) SaveToken(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO credentials (id, access_token, saved_at)
VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  access_token=excluded.access_token,
  saved_at=excluded.saved_at
`, token, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (r *Repository) DeleteToken(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func (r *Repository) LoadPreferences(ctx context.Context) (Preferences, error) {
	prefs := Preferences{}
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return prefs, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return prefs, fmt.Errorf("scan preference: %w", err)
		}
		switch key {
		case "last_category":
			prefs.LastCategory = value
		case "relative_time":
			prefs.RelativeTime = value == "1"
		}
	}
	if err := rows.Err(); err != nil {
		return prefs, fmt.Errorf("iterate preferences: %w", err)
	}
	return prefs, nil
}

func (r *Repository) SavePreferences(ctx context.Context, prefs Preferences) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO preferences (key, value)
VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value
`)
	if err != nil {
		return fmt.Errorf("prepare preference statement: %w", err)
	}
	defer stmt.Close()

	relative := "0"
	if prefs.RelativeTime {
		relative = "1"
	}
	values := [][2]string{
		{"last_category", prefs.LastCategory},
		{"relative_time", relative},
	}
	for _, kv := range values {
		if _, err := stmt.ExecContext(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("save preference %s: %w", kv[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

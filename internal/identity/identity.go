// ABOUTME: SQLite-backed stable device identity for relay registration.
// ABOUTME: Generates one UUID on first run and returns the same id forever after.

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store persists the device identity across process restarts. The relay
// broker keys registrations by device id, so the id must be stable.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates (or opens) the identity database at path. Parent directories
// are created if needed and the schema is applied on open.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS device (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// EnsureDeviceID returns the stored device id, generating and persisting a
// new one on first run.
func (s *Store) EnsureDeviceID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, "SELECT id FROM device LIMIT 1").Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("reading device id: %w", err)
	}

	id = uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO device (id, created_at) VALUES (?, ?)",
		id, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("storing device id: %w", err)
	}

	s.logger.Info("generated device identity", "device_id", id)
	return id, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

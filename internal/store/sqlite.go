package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/andresmejia3/rollcall/internal/types"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS enrolled_identities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	label TEXT NOT NULL,
	descriptors TEXT NOT NULL,
	created_at INTEGER NOT NULL DEFAULT (unixepoch())
);
`

// SQLiteBackend keeps enrollments in a local SQLite database.
type SQLiteBackend struct {
	sqlDB *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(sqliteSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteBackend{sqlDB: sqlDB}, nil
}

func (s *SQLiteBackend) Load(ctx context.Context) ([]types.LabeledDescriptor, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT label, descriptors FROM enrolled_identities ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []types.LabeledDescriptor{}
	for rows.Next() {
		var label, raw string
		if err := rows.Scan(&label, &raw); err != nil {
			return nil, err
		}
		var descriptors []types.FeatureVector
		if err := json.Unmarshal([]byte(raw), &descriptors); err != nil {
			return nil, fmt.Errorf("decode descriptors for %q: %w", label, err)
		}
		entries = append(entries, types.LabeledDescriptor{Label: label, Descriptors: descriptors})
	}
	return entries, rows.Err()
}

func (s *SQLiteBackend) Append(ctx context.Context, entry types.LabeledDescriptor) error {
	raw, err := json.Marshal(entry.Descriptors)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO enrolled_identities (label, descriptors) VALUES (?, ?)`,
		entry.Label, string(raw),
	)
	return err
}

func (s *SQLiteBackend) Reset(ctx context.Context) error {
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM enrolled_identities`)
	return err
}

// Close closes the SQLite handle.
func (s *SQLiteBackend) Close(context.Context) error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andresmejia3/rollcall/internal/types"
	"github.com/jackc/pgx/v5"
)

// PostgresBackend keeps one row per enrollment, ordered by its serial id.
type PostgresBackend struct {
	conn *pgx.Conn
}

// NewPostgres establishes a connection to the database and ensures the schema is initialized.
func NewPostgres(ctx context.Context, connString string) (*PostgresBackend, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &PostgresBackend{conn: conn}, nil
}

// initSchema creates the enrollment table if it doesn't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS enrolled_identities (
			id BIGSERIAL PRIMARY KEY,
			label TEXT NOT NULL,
			descriptors JSONB NOT NULL,
			created_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS enrolled_identities_label_idx ON enrolled_identities (label);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (p *PostgresBackend) Close(ctx context.Context) error {
	return p.conn.Close(ctx)
}

// Load returns every enrollment in insertion order.
func (p *PostgresBackend) Load(ctx context.Context) ([]types.LabeledDescriptor, error) {
	rows, err := p.conn.Query(ctx, `SELECT label, descriptors::text FROM enrolled_identities ORDER BY id ASC`)
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

// Append inserts one enrollment row.
func (p *PostgresBackend) Append(ctx context.Context, entry types.LabeledDescriptor) error {
	raw, err := json.Marshal(entry.Descriptors)
	if err != nil {
		return err
	}
	_, err = p.conn.Exec(ctx, `
		INSERT INTO enrolled_identities (label, descriptors)
		VALUES ($1, $2::jsonb)
	`, entry.Label, string(raw))
	return err
}

// Reset drops the enrollment table and recreates it empty.
// This is useful for development to force a schema refresh without migrations.
func (p *PostgresBackend) Reset(ctx context.Context) error {
	if _, err := p.conn.Exec(ctx, `DROP TABLE IF EXISTS enrolled_identities CASCADE;`); err != nil {
		return err
	}
	return initSchema(ctx, p.conn)
}

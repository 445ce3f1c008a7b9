package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Schema creates the table used by PostgresStore.
const Schema = `
CREATE TABLE IF NOT EXISTS word_tables (
	name       TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps one JSONB row per table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the backing table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure word_tables schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, names []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(names))
	if len(names) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, data FROM word_tables WHERE name = ANY($1::text[])`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("load word tables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name string
			blob []byte
		)
		if err := rows.Scan(&name, &blob); err != nil {
			return nil, fmt.Errorf("scan word table: %w", err)
		}
		out[name] = blob
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate word tables: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Save(ctx context.Context, name string, blob []byte) error {
	query := `
		INSERT INTO word_tables (name, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, name, string(blob)); err != nil {
		return fmt.Errorf("save word table %s: %w", name, err)
	}
	return nil
}

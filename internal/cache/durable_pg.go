package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PGDurable implements DurableScope on the durable_entries table.
type PGDurable struct {
	DB *sql.DB
}

// Get returns the stored value for key.
func (r *PGDurable) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `
SELECT value
FROM durable_entries
WHERE key = $1`
	var value []byte
	err := r.DB.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select durable entry %s: %w", key, err)
	}
	return value, nil
}

// Put upserts value under key.
func (r *PGDurable) Put(ctx context.Context, key string, value []byte) error {
	const query = `
INSERT INTO durable_entries (key, value, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = EXCLUDED.updated_at`
	if _, err := r.DB.ExecContext(ctx, query, key, string(value)); err != nil {
		return fmt.Errorf("upsert durable entry %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (r *PGDurable) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM durable_entries WHERE key = $1`
	if _, err := r.DB.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete durable entry %s: %w", key, err)
	}
	return nil
}

var _ DurableScope = (*PGDurable)(nil)

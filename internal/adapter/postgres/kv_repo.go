package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"nutrifacts/internal/domain"
)

var _ domain.KeyValueStore = (*DB)(nil)

// Get returns the value stored under key in the store's namespace.
func (d *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := d.sql.QueryRowContext(ctx,
		"SELECT value FROM kv_store WHERE namespace=$1 AND key=$2;", d.namespace, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set upserts value under key.
func (d *DB) Set(ctx context.Context, key, value string) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO kv_store(namespace, key, value, updated_at) VALUES($1, $2, $3, $4)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at;`,
		d.namespace, key, value, time.Now().UTC(),
	)
	return err
}

// Delete removes keys from the namespace.
func (d *DB) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := d.sql.ExecContext(ctx,
		"DELETE FROM kv_store WHERE namespace=$1 AND key = ANY($2);", d.namespace, pq.Array(keys),
	)
	return err
}

// Package memory implements an in-memory key-value store for development and testing.
package memory

import (
	"context"
	"sync"

	"nutrifacts/internal/domain"
)

// DB implements an in-memory key-value store.
type DB struct {
	mu     sync.Mutex
	values map[string]string
}

// New creates a new in-memory store.
func New() *DB {
	return &DB{values: make(map[string]string)}
}

// Ensure interfaces are met.
var _ domain.KeyValueStore = (*DB)(nil)

// Get returns the value stored under key.
func (db *DB) Get(ctx context.Context, key string) (string, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	v, ok := db.values[key]
	return v, ok, nil
}

// Set stores value under key, replacing any previous value.
func (db *DB) Set(ctx context.Context, key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.values[key] = value
	return nil
}

// Delete removes keys. Absent keys are ignored.
func (db *DB) Delete(ctx context.Context, keys ...string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, k := range keys {
		delete(db.values, k)
	}
	return nil
}

// Len returns the number of stored keys.
func (db *DB) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.values)
}

// Package store persists cache entries outside the process.
package store

import (
	"context"
	"errors"

	"goflare.io/foldscope/internal/models"
)

// ErrNotFound is returned by Get when no entry exists for the key.
var ErrNotFound = errors.New("entry not found")

// Store is a persistent, collection-partitioned key-value store of cache entries.
type Store interface {
	// Open verifies the backend is reachable.
	Open(ctx context.Context) error
	Get(ctx context.Context, collection models.Collection, key string) (*models.Entry, error)
	Put(ctx context.Context, collection models.Collection, entry *models.Entry) error
	Keys(ctx context.Context, collection models.Collection) ([]string, error)
	Clear(ctx context.Context, collection models.Collection) error
	Close() error
}

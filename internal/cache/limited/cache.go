// Package limited is the bounded in-process tier of the response cache.
package limited

import (
	"context"

	"go.uber.org/zap"

	"goflare.io/foldscope/internal/models"
)

// Cache combines the Ristretto store with per-collection key tracking.
type Cache struct {
	store   Store
	tracker *Tracker
}

// New creates a new Cache holding at most maxItems entries.
func New(maxItems int64, logger *zap.Logger) (*Cache, error) {
	store, err := NewRistrettoStore(maxItems, logger)
	if err != nil {
		return nil, err
	}

	return &Cache{
		store:   store,
		tracker: NewTracker(),
	}, nil
}

func localKey(collection models.Collection, key string) string {
	return string(collection) + "\x00" + key
}

// Set stores an entry and tracks its key.
func (c *Cache) Set(ctx context.Context, collection models.Collection, entry *models.Entry) {
	if c.store.Set(ctx, localKey(collection, entry.Key), entry) {
		c.tracker.Add(ctx, collection, entry.Key)
	}
}

// Get retrieves an entry.
func (c *Cache) Get(ctx context.Context, collection models.Collection, key string) (*models.Entry, bool) {
	return c.store.Get(ctx, localKey(collection, key))
}

// Delete removes an entry and stops tracking its key.
func (c *Cache) Delete(ctx context.Context, collection models.Collection, key string) {
	c.store.Delete(ctx, localKey(collection, key))
	c.tracker.Remove(ctx, collection, key)
}

// Clear removes every entry of one collection.
func (c *Cache) Clear(ctx context.Context, collection models.Collection) {
	for _, key := range c.tracker.Drain(ctx, collection) {
		c.store.Delete(ctx, localKey(collection, key))
	}
}

// Flush removes every entry of every collection.
func (c *Cache) Flush(ctx context.Context) {
	c.store.Flush(ctx)
	for _, collection := range models.Collections {
		c.tracker.Drain(ctx, collection)
	}
}

// Wait blocks until pending writes are visible.
func (c *Cache) Wait() {
	c.store.Wait()
}

// Close releases the store.
func (c *Cache) Close() error {
	c.store.Close()
	return nil
}

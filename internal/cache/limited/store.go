package limited

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"goflare.io/foldscope/internal/models"
)

// Store defines the operations of the in-process tier.
type Store interface {
	Set(ctx context.Context, key string, entry *models.Entry) bool
	Get(ctx context.Context, key string) (*models.Entry, bool)
	Delete(ctx context.Context, key string)
	Flush(ctx context.Context)
	Wait()
	Close()
}

// RistrettoStore implements Store with Ristretto. Every entry costs 1, so
// maxItems bounds the number of entries held.
type RistrettoStore struct {
	cache  *ristretto.Cache
	logger *zap.Logger
}

// NewRistrettoStore creates a new RistrettoStore instance.
func NewRistrettoStore(maxItems int64, logger *zap.Logger) (*RistrettoStore, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        10 * maxItems,
		MaxCost:            maxItems,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Ristretto cache: %w", err)
	}

	return &RistrettoStore{
		cache:  c,
		logger: logger,
	}, nil
}

// Set stores an entry. Ristretto may drop writes under contention; false reports a dropped write.
func (s *RistrettoStore) Set(ctx context.Context, key string, entry *models.Entry) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	if !s.cache.Set(key, entry, 1) {
		s.logger.Debug("Ristretto Set dropped", zap.String("key", key))
		return false
	}
	return true
}

// Get retrieves an entry.
func (s *RistrettoStore) Get(ctx context.Context, key string) (*models.Entry, bool) {
	select {
	case <-ctx.Done():
		return nil, false
	default:
	}

	value, found := s.cache.Get(key)
	if !found {
		return nil, false
	}

	entry, ok := value.(*models.Entry)
	if !ok {
		s.logger.Error("Invalid cache entry type", zap.String("key", key))
		s.cache.Del(key)
		return nil, false
	}
	return entry, true
}

// Delete removes an entry.
func (s *RistrettoStore) Delete(_ context.Context, key string) {
	s.cache.Del(key)
}

// Flush clears every entry.
func (s *RistrettoStore) Flush(_ context.Context) {
	s.cache.Clear()
}

// Wait blocks until buffered writes are applied.
func (s *RistrettoStore) Wait() {
	s.cache.Wait()
}

// Close stops Ristretto's background goroutines.
func (s *RistrettoStore) Close() {
	s.cache.Close()
}

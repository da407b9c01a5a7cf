package multi

import (
	"context"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"

	"goflare.io/foldscope/internal/config"
	"goflare.io/foldscope/internal/models"
)

// BloomFilter keeps one filter per collection so lookups for keys that were
// never stored skip the persistent store. Another process sharing the store
// adds keys this filter never sees, so a complete filter expires
// RefreshInterval after its last rebuild.
type BloomFilter struct {
	mu        sync.RWMutex
	settings  config.BloomFilterConfig
	filters   map[models.Collection]*bloom.BloomFilter
	complete  map[models.Collection]bool
	rebuiltAt map[models.Collection]time.Time
	now       func() time.Time
	logger    *zap.Logger
}

// NewBloomFilter creates empty, incomplete filters for every collection.
func NewBloomFilter(settings config.BloomFilterConfig, now func() time.Time, logger *zap.Logger) *BloomFilter {
	bf := &BloomFilter{
		settings:  settings,
		filters:   make(map[models.Collection]*bloom.BloomFilter, len(models.Collections)),
		complete:  make(map[models.Collection]bool, len(models.Collections)),
		rebuiltAt: make(map[models.Collection]time.Time, len(models.Collections)),
		now:       now,
		logger:    logger,
	}
	for _, c := range models.Collections {
		bf.filters[c] = bf.newFilter()
	}
	return bf
}

func (bf *BloomFilter) newFilter() *bloom.BloomFilter {
	return bloom.NewWithEstimates(bf.settings.ExpectedItems, bf.settings.FalsePositiveRate)
}

// Add records a key.
func (bf *BloomFilter) Add(collection models.Collection, key string) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	bf.filters[collection].AddString(key)
}

// Test reports whether the key might be stored. Until a collection has been
// rebuilt from the store every key might be stored.
func (bf *BloomFilter) Test(collection models.Collection, key string) bool {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	if !bf.complete[collection] || bf.settings.RefreshInterval <= 0 {
		return true
	}
	return bf.filters[collection].TestString(key)
}

// Expired reports whether a collection's filter is older than RefreshInterval
// and should be rebuilt before a negative test is trusted.
func (bf *BloomFilter) Expired(collection models.Collection) bool {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	return bf.complete[collection] && bf.now().Sub(bf.rebuiltAt[collection]) >= bf.settings.RefreshInterval
}

// Rebuild reloads a collection's filter from the keys held by the store.
// On failure the collection stays incomplete and every lookup reaches the store.
func (bf *BloomFilter) Rebuild(ctx context.Context, collection models.Collection, keys func(context.Context, models.Collection) ([]string, error)) error {
	started := bf.now()
	stored, err := keys(ctx, collection)
	if err != nil {
		bf.mu.Lock()
		bf.complete[collection] = false
		bf.mu.Unlock()
		return err
	}

	filter := bf.newFilter()
	for _, key := range stored {
		filter.AddString(key)
	}

	bf.mu.Lock()
	// keys added while the store was being read must survive the swap
	if err := filter.Merge(bf.filters[collection]); err != nil {
		bf.mu.Unlock()
		return err
	}
	bf.filters[collection] = filter
	bf.complete[collection] = true
	bf.rebuiltAt[collection] = started
	bf.mu.Unlock()

	bf.logger.Debug("Rebuilt bloom filter",
		zap.String("collection", string(collection)),
		zap.Int("keys", len(stored)))
	return nil
}

// Reset empties a collection's filter after the collection was cleared.
func (bf *BloomFilter) Reset(collection models.Collection) {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	bf.filters[collection] = bf.newFilter()
}

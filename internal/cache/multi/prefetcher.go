package multi

import (
	"context"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goflare.io/foldscope/internal/models"
)

const warmupConcurrency = 8

// Prefetcher copies configured keys from the store into the local tier.
type Prefetcher struct {
	cache  *Cache
	keys   map[models.Collection][]string
	logger *zap.Logger
}

// NewPrefetcher creates a new Prefetcher instance.
func NewPrefetcher(cache *Cache, keys map[models.Collection][]string) *Prefetcher {
	return &Prefetcher{
		cache:  cache,
		keys:   keys,
		logger: cache.logger,
	}
}

// Warmup loads every configured key that is still fresh. It returns the number of entries loaded.
func (p *Prefetcher) Warmup(ctx context.Context) int {
	if p.cache.local == nil || len(p.keys) == 0 {
		return 0
	}

	loaded := atomic.NewInt64(0)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmupConcurrency)
	for collection, keys := range p.keys {
		collection := collection
		for _, key := range keys {
			key := key
			g.Go(func() error {
				entry, err := p.cache.resilience.Get(gctx, collection, key)
				if err != nil {
					p.logger.Debug("Warmup skipped key",
						zap.String("collection", string(collection)),
						zap.String("key", key),
						zap.Error(err))
					return nil
				}
				if !p.cache.ttl.IsFresh(entry) {
					return nil
				}
				p.cache.local.Set(gctx, collection, entry)
				loaded.Inc()
				return nil
			})
		}
	}
	_ = g.Wait()

	p.cache.local.Wait()
	p.logger.Info("Warmed up local cache", zap.Int64("entries", loaded.Load()))
	return int(loaded.Load())
}

// Package multi implements the response cache: a local Ristretto tier in front
// of a persistent store, partitioned into collections, with read-time staleness.
package multi

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/foldscope/internal/cache/limited"
	"goflare.io/foldscope/internal/config"
	"goflare.io/foldscope/internal/models"
	"goflare.io/foldscope/internal/store"
	"goflare.io/foldscope/pkg/serialization"
)

var (
	// ErrStorageUnavailable is returned by Initialize when the persistent store cannot be opened.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStorageIO marks a store failure after initialization. It is logged, never returned by Get or Set.
	ErrStorageIO = errors.New("storage i/o error")
)

// CacheOperations defines the interface for cache operations.
type CacheOperations interface {
	Initialize(ctx context.Context) error
	Get(ctx context.Context, collection models.Collection, key string, value any) (bool, error)
	Lookup(ctx context.Context, collection models.Collection, key string) (*models.Entry, bool, error)
	Set(ctx context.Context, collection models.Collection, key string, value any) error
	Clear(ctx context.Context, collection models.Collection) error
	Metrics() models.MetricsSnapshot
	Close() error
}

// State is the lifecycle position of a Cache.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return "uninitialized"
	}
}

// Cache is the response cache. Until Initialize succeeds every Get misses and every Set is dropped.
type Cache struct {
	state      *atomic.Int32
	local      *limited.Cache
	resilience *Resilience
	bloom      *BloomFilter
	ttl        *TTLManager
	prefetcher *Prefetcher
	codec      serialization.Codec
	sf         singleflight.Group
	metrics    *models.Metrics
	tracer     trace.Tracer
	logger     *zap.Logger
}

var _ CacheOperations = (*Cache)(nil)

// New creates a Cache over s. The cache is not usable until Initialize is called.
func New(cfg *config.Config, s store.Store) (*Cache, error) {
	resilience, err := NewResilience(cfg, s)
	if err != nil {
		return nil, err
	}

	var local *limited.Cache
	if cfg.LocalCache.Enabled {
		local, err = limited.New(cfg.LocalCache.MaxItems, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local cache: %w", err)
		}
	}

	c := &Cache{
		state:      atomic.NewInt32(int32(StateUninitialized)),
		local:      local,
		resilience: resilience,
		bloom:      NewBloomFilter(cfg.BloomFilterSettings, cfg.Now, cfg.Logger),
		ttl:        NewTTLManager(cfg.TTL, cfg.Now),
		codec:      cfg.Serialization,
		metrics:    models.NewMetrics(),
		tracer:     otel.Tracer("goflare.io/foldscope/cache"),
		logger:     cfg.Logger,
	}
	c.prefetcher = NewPrefetcher(c, cfg.WarmupKeys)
	return c, nil
}

// State returns the lifecycle state.
func (c *Cache) State() State {
	return State(c.state.Load())
}

// Initialize opens the persistent store, rebuilds the bloom filters and warms the
// local tier. On failure it returns ErrStorageUnavailable and the cache keeps
// answering every lookup with a miss. Calling it again retries the open.
func (c *Cache) Initialize(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "Cache.Initialize")
	defer span.End()

	if c.State() == StateReady {
		return nil
	}

	if err := c.resilience.Open(ctx); err != nil {
		c.state.Store(int32(StateUnavailable))
		span.RecordError(err)
		c.logger.Warn("Persistent store unavailable, caching disabled", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	for _, collection := range models.Collections {
		if err := c.bloom.Rebuild(ctx, collection, c.resilience.Keys); err != nil {
			c.logger.Warn("Failed to rebuild bloom filter",
				zap.String("collection", string(collection)),
				zap.Error(err))
		}
	}

	c.state.Store(int32(StateReady))
	c.prefetcher.Warmup(ctx)
	c.logger.Info("Response cache ready", zap.Duration("ttl", c.ttl.TTL()))
	return nil
}

// Get decodes the cached value for key into value. It reports false when the
// key is absent, stale, or the store failed. The only errors returned are
// caller errors such as an unknown collection.
func (c *Cache) Get(ctx context.Context, collection models.Collection, key string, value any) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "Cache.Get", trace.WithAttributes(
		attribute.String("collection", string(collection)),
		attribute.String("key", key)))
	defer span.End()

	if !collection.Valid() {
		return false, fmt.Errorf("%w: %q", models.ErrUnknownCollection, collection)
	}

	entry, ok := c.load(ctx, collection, key)
	if !ok {
		c.metrics.Misses.Inc()
		span.SetAttributes(attribute.Bool("hit", false))
		return false, nil
	}

	if !c.ttl.IsFresh(entry) {
		c.metrics.Stale.Inc()
		c.metrics.Misses.Inc()
		span.SetAttributes(attribute.Bool("hit", false), attribute.Bool("stale", true))
		c.logger.Debug("Stale cache entry",
			zap.String("collection", string(collection)),
			zap.String("key", key),
			zap.Duration("age", entry.Age(c.ttl.Now())))
		return false, nil
	}

	if err := c.codec.Unmarshal(entry.Payload, value); err != nil {
		c.metrics.StorageErrors.Inc()
		c.metrics.Misses.Inc()
		c.logger.Warn("Failed to decode cached payload",
			zap.String("collection", string(collection)),
			zap.String("key", key),
			zap.Error(err))
		return false, nil
	}

	entry.IncrementAccess()
	c.metrics.Hits.Inc()
	span.SetAttributes(attribute.Bool("hit", true))
	return true, nil
}

// Lookup returns a copy of the raw entry, fresh or stale, so callers can apply
// their own age policy.
func (c *Cache) Lookup(ctx context.Context, collection models.Collection, key string) (*models.Entry, bool, error) {
	ctx, span := c.tracer.Start(ctx, "Cache.Lookup", trace.WithAttributes(
		attribute.String("collection", string(collection)),
		attribute.String("key", key)))
	defer span.End()

	if !collection.Valid() {
		return nil, false, fmt.Errorf("%w: %q", models.ErrUnknownCollection, collection)
	}

	entry, ok := c.load(ctx, collection, key)
	if !ok {
		return nil, false, nil
	}
	payload := append([]byte(nil), entry.Payload...)
	return models.NewEntry(entry.Key, payload, entry.StoredAt), true, nil
}

// load finds an entry in the local tier or the store. Store failures are logged and reported as absent.
func (c *Cache) load(ctx context.Context, collection models.Collection, key string) (*models.Entry, bool) {
	if c.State() != StateReady {
		c.logger.Debug("Cache not ready, treating lookup as miss",
			zap.String("state", c.State().String()),
			zap.String("collection", string(collection)),
			zap.String("key", key))
		return nil, false
	}

	if !c.bloom.Test(collection, key) && !c.retestBloom(ctx, collection, key) {
		c.logger.Debug("Bloom filter negative for key",
			zap.String("collection", string(collection)),
			zap.String("key", key))
		return nil, false
	}

	if c.local != nil {
		if entry, ok := c.local.Get(ctx, collection, key); ok {
			if c.ttl.IsFresh(entry) {
				return entry, true
			}
			// the store may hold a newer write from another process
			c.local.Delete(ctx, collection, key)
		}
	}

	v, err, _ := c.sf.Do(string(collection)+"\x00"+key, func() (interface{}, error) {
		return c.resilience.Get(ctx, collection, key)
	})
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.metrics.StorageErrors.Inc()
			c.logger.Warn("Cache read failed, treating as miss",
				zap.String("collection", string(collection)),
				zap.String("key", key),
				zap.Error(fmt.Errorf("%w: %w", ErrStorageIO, err)))
		}
		return nil, false
	}

	entry := v.(*models.Entry)
	if c.local != nil && c.ttl.IsFresh(entry) {
		c.local.Set(ctx, collection, entry)
	}
	return entry, true
}

// retestBloom rebuilds an expired filter from the store and tests key again,
// picking up keys other processes wrote since the last rebuild.
func (c *Cache) retestBloom(ctx context.Context, collection models.Collection, key string) bool {
	if !c.bloom.Expired(collection) {
		return false
	}
	_, _, _ = c.sf.Do("bloom\x00"+string(collection), func() (interface{}, error) {
		if err := c.bloom.Rebuild(ctx, collection, c.resilience.Keys); err != nil {
			c.metrics.StorageErrors.Inc()
			c.logger.Warn("Failed to refresh bloom filter",
				zap.String("collection", string(collection)),
				zap.Error(fmt.Errorf("%w: %w", ErrStorageIO, err)))
		}
		return nil, nil
	})
	return c.bloom.Test(collection, key)
}

// Set stores value under key with the current time. Store failures are logged
// and swallowed; before a successful Initialize the write is dropped. The only
// errors returned are caller errors: an unknown collection or an unencodable value.
func (c *Cache) Set(ctx context.Context, collection models.Collection, key string, value any) error {
	ctx, span := c.tracer.Start(ctx, "Cache.Set", trace.WithAttributes(
		attribute.String("collection", string(collection)),
		attribute.String("key", key)))
	defer span.End()

	if !collection.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownCollection, collection)
	}

	payload, err := c.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if c.State() != StateReady {
		c.metrics.Dropped.Inc()
		c.logger.Debug("Cache not ready, dropping write",
			zap.String("state", c.State().String()),
			zap.String("collection", string(collection)),
			zap.String("key", key))
		return nil
	}

	entry := models.NewEntry(key, payload, c.ttl.Now())

	if err := c.resilience.Put(ctx, collection, entry); err != nil {
		c.metrics.StorageErrors.Inc()
		span.RecordError(err)
		c.logger.Warn("Cache write failed",
			zap.String("collection", string(collection)),
			zap.String("key", key),
			zap.Error(fmt.Errorf("%w: %w", ErrStorageIO, err)))
	}

	if c.local != nil {
		c.local.Set(ctx, collection, entry)
	}
	c.bloom.Add(collection, key)
	return nil
}

// Clear removes every entry of one collection. Store failures are logged and swallowed.
func (c *Cache) Clear(ctx context.Context, collection models.Collection) error {
	ctx, span := c.tracer.Start(ctx, "Cache.Clear", trace.WithAttributes(
		attribute.String("collection", string(collection))))
	defer span.End()

	if !collection.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownCollection, collection)
	}

	if c.local != nil {
		c.local.Clear(ctx, collection)
	}

	if c.State() != StateReady {
		return nil
	}

	// a failed clear then only costs misses for keys still in the store
	c.bloom.Reset(collection)

	if err := c.resilience.Clear(ctx, collection); err != nil {
		c.metrics.StorageErrors.Inc()
		c.logger.Warn("Cache clear failed",
			zap.String("collection", string(collection)),
			zap.Error(fmt.Errorf("%w: %w", ErrStorageIO, err)))
	}
	return nil
}

// Metrics returns a snapshot of the hit and miss counters.
func (c *Cache) Metrics() models.MetricsSnapshot {
	return c.metrics.Snapshot()
}

// Close releases the local tier and the store connection.
func (c *Cache) Close() error {
	c.logger.Info("Closing Cache")

	var errs []error
	if c.local != nil {
		if err := c.local.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close local cache: %w", err))
		}
	}
	if err := c.resilience.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	c.state.Store(int32(StateUninitialized))
	return errors.Join(errs...)
}

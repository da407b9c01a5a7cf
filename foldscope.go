// Package foldscope fetches protein search results and predicted structures
// through a persistent response cache, and measures distances, angles and
// surfaces between picked points of a structure.
package foldscope

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"goflare.io/foldscope/internal/cache/multi"
	"goflare.io/foldscope/internal/config"
	"goflare.io/foldscope/internal/models"
	"goflare.io/foldscope/internal/remote"
	"goflare.io/foldscope/internal/store"
	"goflare.io/foldscope/internal/utils"
	"goflare.io/foldscope/pkg/measurement"
	"goflare.io/foldscope/pkg/protein"
)

// Option configures a Foldscope.
type Option func(*config.Config) error

// Metrics is a snapshot of the response cache counters.
type Metrics = models.MetricsSnapshot

// WithLogger sets a custom logger.
func WithLogger(logger *zap.Logger) Option {
	return Option(config.WithLogger(logger))
}

// WithTTL sets how long cached responses are served.
func WithTTL(ttl time.Duration) Option {
	return Option(config.WithTTL(ttl))
}

// WithRedis sets the Redis connection used as the persistent store.
func WithRedis(opts *redis.Options) Option {
	return Option(config.WithRedis(opts))
}

// WithKeyPrefix namespaces the Redis keys.
func WithKeyPrefix(prefix string) Option {
	return Option(config.WithKeyPrefix(prefix))
}

// WithSerialization selects how entries are encoded: "json" or "gob".
func WithSerialization(typ string) Option {
	return Option(config.WithSerialization(typ))
}

// WithLocalCache sizes the in-process tier.
func WithLocalCache(maxItems int64) Option {
	return Option(config.WithLocalCache(maxItems))
}

// WithoutLocalCache disables the in-process tier.
func WithoutLocalCache() Option {
	return Option(config.WithoutLocalCache())
}

// WithBloomRefresh sets how long the cache trusts that a key it never saw is
// absent from Redis. Writes by other processes sharing Redis become visible
// within that interval; zero makes them visible immediately.
func WithBloomRefresh(interval time.Duration) Option {
	return Option(config.WithBloomRefresh(interval))
}

// WithClock replaces the time source used for entry ages.
func WithClock(clock func() time.Time) Option {
	return Option(config.WithClock(clock))
}

// WithUniProtURL overrides the UniProtKB REST base URL.
func WithUniProtURL(u string) Option {
	return Option(config.WithRemote(config.RemoteConfig{UniProtBaseURL: u}))
}

// WithAlphaFoldURL overrides the AlphaFold API base URL.
func WithAlphaFoldURL(u string) Option {
	return Option(config.WithRemote(config.RemoteConfig{AlphaFoldBaseURL: u}))
}

// WithAlphaFoldFilesURL overrides where model files are downloaded from.
func WithAlphaFoldFilesURL(u string) Option {
	return Option(config.WithRemote(config.RemoteConfig{AlphaFoldFilesURL: u}))
}

// WithBlastURL overrides the NCBI BLAST endpoint.
func WithBlastURL(u string) Option {
	return Option(config.WithRemote(config.RemoteConfig{BlastURL: u}))
}

// WithBlastDatabase selects the database searched by BLAST, "nr" by default.
func WithBlastDatabase(db string) Option {
	return Option(config.WithRemote(config.RemoteConfig{BlastDatabase: db}))
}

// WithHTTPClient sets the client used for provider calls.
func WithHTTPClient(client *http.Client) Option {
	return Option(config.WithRemote(config.RemoteConfig{HTTPClient: client}))
}

// WithSearchLimit caps the number of search results requested.
func WithSearchLimit(limit int) Option {
	return Option(config.WithRemote(config.RemoteConfig{SearchLimit: limit}))
}

// WithWarmup lists keys loaded into the in-process tier at startup.
func WithWarmup(collection string, keys ...string) Option {
	return func(cfg *config.Config) error {
		c, err := models.ParseCollection(collection)
		if err != nil {
			return err
		}
		return config.WithWarmupKeys(c, keys...)(cfg)
	}
}

// Foldscope is the entry point: cached provider lookups and measurement sessions.
type Foldscope struct {
	cache        *multi.Cache
	remote       *remote.Client
	sf           singleflight.Group
	fetchTimeout time.Duration
	logger       *zap.Logger
}

// New builds a Foldscope. An unreachable Redis does not fail construction: the
// cache then misses on every lookup and all requests go to the providers.
func New(ctx context.Context, opts ...Option) (*Foldscope, error) {
	cfgOpts := make([]config.Option, 0, len(opts))
	for _, opt := range opts {
		cfgOpts = append(cfgOpts, config.Option(opt))
	}

	cfg, err := config.NewConfig(cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}

	client := redis.NewClient(cfg.Storage.Redis)
	cache, err := multi.New(cfg, store.NewRedis(client, cfg.KeyPrefix, cfg.Serialization, cfg.Logger))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	rc, err := remote.New(cfg)
	if err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("failed to initialize remote client: %w", err)
	}

	if err := cache.Initialize(ctx); err != nil {
		if !errors.Is(err, multi.ErrStorageUnavailable) {
			_ = cache.Close()
			return nil, err
		}
		cfg.Logger.Warn("Continuing without response cache", zap.Error(err))
	}

	// a shared fetch may use every retry attempt
	attempts := time.Duration(max(1, cfg.ResilienceConfig.Retry.MaxAttempts))
	return &Foldscope{
		cache:        cache,
		remote:       rc,
		fetchTimeout: attempts * (cfg.Remote.Timeout + cfg.ResilienceConfig.Retry.MaxDelay),
		logger:       cfg.Logger,
	}, nil
}

// SearchProteins returns UniProt hits for query, served from the cache while fresh.
func (f *Foldscope) SearchProteins(ctx context.Context, query string) ([]protein.Protein, error) {
	key := utils.NormalizeQuery(query)
	if key == "" {
		return nil, ErrEmptyQuery
	}

	var cached []protein.Protein
	found, err := f.cache.Get(ctx, models.Searches, key, &cached)
	if err != nil {
		return nil, err
	}
	if found {
		return cached, nil
	}

	v, err := f.fetchShared(ctx, models.Searches, key, func(ctx context.Context) (any, error) {
		return f.remote.SearchProteins(ctx, key, 0)
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", key, err)
	}
	return slices.Clone(v.([]protein.Protein)), nil
}

// Structure returns the predicted structure for a UniProt accession, served from the cache while fresh.
func (f *Foldscope) Structure(ctx context.Context, uniprotID string) (*protein.StructureData, error) {
	key := utils.NormalizeAccession(uniprotID)
	if key == "" {
		return nil, ErrEmptyID
	}

	var cached protein.StructureData
	found, err := f.cache.Get(ctx, models.Structures, key, &cached)
	if err != nil {
		return nil, err
	}
	if found {
		return &cached, nil
	}

	v, err := f.fetchShared(ctx, models.Structures, key, func(ctx context.Context) (any, error) {
		data, err := f.remote.Structure(ctx, key)
		if err != nil {
			return nil, err
		}
		return *data, nil
	})
	if err != nil {
		return nil, fmt.Errorf("structure %s: %w", key, err)
	}
	data := v.(protein.StructureData)
	return &data, nil
}

// fetchShared runs fetch once per collection and key however many callers
// miss at the same time, and caches the result. The fetch is detached from
// the ctx of the caller that started it; each caller stops waiting when its
// own ctx is done.
func (f *Foldscope) fetchShared(ctx context.Context, collection models.Collection, key string, fetch func(context.Context) (any, error)) (any, error) {
	ch := f.sf.DoChan(string(collection)+"\x00"+key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.fetchTimeout)
		defer cancel()

		v, err := fetch(fctx)
		if err != nil {
			return nil, err
		}
		f.store(fctx, collection, key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (f *Foldscope) store(ctx context.Context, collection models.Collection, key string, value any) {
	if err := f.cache.Set(ctx, collection, key, value); err != nil {
		f.logger.Warn("Failed to cache response",
			zap.String("collection", string(collection)),
			zap.String("key", key),
			zap.Error(err))
	}
}

// Annotations returns the sequence features of a UniProt accession. They are not cached.
func (f *Foldscope) Annotations(ctx context.Context, uniprotID string) ([]protein.Annotation, error) {
	key := utils.NormalizeAccession(uniprotID)
	if key == "" {
		return nil, ErrEmptyID
	}
	return f.remote.Annotations(ctx, key)
}

// Status reports provider reachability and whether the response cache is ready.
func (f *Foldscope) Status(ctx context.Context) map[string]bool {
	status := f.remote.Status(ctx)
	status["cache"] = f.cache.State() == multi.StateReady
	return status
}

// ClearCache removes every cached response of one collection: "searches" or "structures".
func (f *Foldscope) ClearCache(ctx context.Context, collection string) error {
	c, err := models.ParseCollection(collection)
	if err != nil {
		return err
	}
	return f.cache.Clear(ctx, c)
}

// SubmitBlast queues a BLAST similarity search for a protein sequence and
// returns its request id. FASTA headers and whitespace are ignored.
func (f *Foldscope) SubmitBlast(ctx context.Context, sequence string) (string, error) {
	seq := utils.NormalizeSequence(sequence)
	if seq == "" {
		return "", ErrEmptySequence
	}
	return f.remote.SubmitBlast(ctx, seq)
}

// BlastResults polls a submitted BLAST search once.
func (f *Foldscope) BlastResults(ctx context.Context, rid string) (*protein.BlastResult, error) {
	rid = strings.TrimSpace(rid)
	if rid == "" {
		return nil, ErrEmptyRID
	}
	return f.remote.BlastResults(ctx, rid)
}

// WaitBlast polls a submitted BLAST search every interval until its report is
// ready, the search fails or ctx is done.
func (f *Foldscope) WaitBlast(ctx context.Context, rid string, interval time.Duration) (*protein.BlastResult, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := f.BlastResults(ctx, rid)
		if err != nil {
			return nil, err
		}
		switch result.Status {
		case protein.BlastReady:
			return result, nil
		case protein.BlastFailed:
			return nil, fmt.Errorf("%w: request id %s", ErrBlastFailed, result.RID)
		}
		f.logger.Debug("BLAST search still running", zap.String("rid", result.RID))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DownloadStructure fetches the AlphaFold model file of a UniProt accession
// in "pdb" or "cif" format. Model files are not cached.
func (f *Foldscope) DownloadStructure(ctx context.Context, uniprotID, format string) ([]byte, error) {
	key := utils.NormalizeAccession(uniprotID)
	if key == "" {
		return nil, ErrEmptyID
	}
	return f.remote.DownloadStructure(ctx, key, protein.StructureFormat(strings.ToLower(strings.TrimSpace(format))))
}

// CacheMetrics returns the cache counters.
func (f *Foldscope) CacheMetrics() Metrics {
	return f.cache.Metrics()
}

// NewMeasurementSession starts a measurement session in the given mode.
func (f *Foldscope) NewMeasurementSession(kind measurement.Kind, opts ...measurement.SessionOption) (*measurement.Session, error) {
	return measurement.NewSession(kind, opts...)
}

// Close releases the cache and its Redis connection.
func (f *Foldscope) Close() error {
	return f.cache.Close()
}

package config

import (
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/foldscope/internal/models"
	"goflare.io/foldscope/pkg/serialization"
)

// Config holds everything needed to build the response cache and the remote clients.
type Config struct {
	TTL       time.Duration
	KeyPrefix string
	Clock     func() time.Time

	LocalCache          LocalCacheConfig
	Storage             StorageConfig
	BloomFilterSettings BloomFilterConfig
	ResilienceConfig    ResilienceConfig
	Remote              RemoteConfig
	WarmupKeys          map[models.Collection][]string
	Serialization       serialization.Codec
	Logger              *zap.Logger
}

// LocalCacheConfig configures the in-process tier.
type LocalCacheConfig struct {
	Enabled  bool
	MaxItems int64
}

// StorageConfig configures the persistent store.
type StorageConfig struct {
	Redis *redis.Options
}

// BloomFilterConfig sizes the per-collection bloom filters. A negative test is
// trusted for RefreshInterval after the filter was last rebuilt from the store;
// keys written by other processes become visible within that window. Zero
// disables the skip so every lookup reaches the store.
type BloomFilterConfig struct {
	ExpectedItems     uint
	FalsePositiveRate float64
	RefreshInterval   time.Duration
}

// RetryConfig configures the retrier.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	Jitter      float64
}

// ResilienceConfig configures circuit breakers and retries.
type ResilienceConfig struct {
	StorageCircuitBreaker gobreaker.Settings
	RemoteCircuitBreaker  gobreaker.Settings
	Retry                 RetryConfig
}

// RemoteConfig configures the UniProt, AlphaFold and BLAST clients.
type RemoteConfig struct {
	UniProtBaseURL    string
	AlphaFoldBaseURL  string
	AlphaFoldFilesURL string
	BlastURL          string
	BlastProgram      string
	BlastDatabase     string
	Timeout           time.Duration
	SearchLimit       int
	HTTPClient        *http.Client
}

// Option mutates a Config.
type Option func(*Config) error

var (
	ErrInvalidTTL       = errors.New("ttl must be positive")
	ErrInvalidLocalSize = errors.New("local cache size must be positive")
)

// NewConfig creates a Config with defaults, then applies options.
func NewConfig(options ...Option) (*Config, error) {
	codec, err := serialization.New(serialization.JSONType)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TTL:       24 * time.Hour,
		KeyPrefix: "foldscope",
		Clock:     time.Now,
		LocalCache: LocalCacheConfig{
			Enabled:  true,
			MaxItems: 4096,
		},
		Storage: StorageConfig{
			Redis: &redis.Options{Addr: "localhost:6379"},
		},
		BloomFilterSettings: BloomFilterConfig{
			ExpectedItems:     10000,
			FalsePositiveRate: 0.01,
			RefreshInterval:   30 * time.Second,
		},
		ResilienceConfig: ResilienceConfig{
			StorageCircuitBreaker: gobreaker.Settings{
				Name:        "StorageCircuitBreaker",
				MaxRequests: 3,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= 5
				},
			},
			RemoteCircuitBreaker: gobreaker.Settings{
				Name:        "RemoteCircuitBreaker",
				MaxRequests: 1,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= 3
				},
			},
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   100 * time.Millisecond,
				MaxDelay:    2 * time.Second,
				Factor:      2,
				Jitter:      0.2,
			},
		},
		Remote: RemoteConfig{
			UniProtBaseURL:    "https://rest.uniprot.org/uniprotkb",
			AlphaFoldBaseURL:  "https://alphafold.ebi.ac.uk/api",
			AlphaFoldFilesURL: "https://alphafold.ebi.ac.uk/files",
			BlastURL:          "https://blast.ncbi.nlm.nih.gov/Blast.cgi",
			BlastProgram:      "blastp",
			BlastDatabase:     "nr",
			Timeout:           5 * time.Second,
			SearchLimit:       10,
		},
		Serialization: codec,
	}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Logger == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		cfg.Logger = logger
	}

	return cfg, nil
}

// Now returns the current time from the configured clock.
func (c *Config) Now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock()
}

// WithLogger sets a custom logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger != nil {
			c.Logger = logger
		}
		return nil
	}
}

// WithTTL sets how long entries count as fresh.
func WithTTL(ttl time.Duration) Option {
	return func(c *Config) error {
		if ttl <= 0 {
			return ErrInvalidTTL
		}
		c.TTL = ttl
		return nil
	}
}

// WithKeyPrefix namespaces every storage key.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) error {
		if prefix == "" {
			return errors.New("key prefix must not be empty")
		}
		c.KeyPrefix = prefix
		return nil
	}
}

// WithClock replaces the time source.
func WithClock(clock func() time.Time) Option {
	return func(c *Config) error {
		if clock != nil {
			c.Clock = clock
		}
		return nil
	}
}

// WithLocalCache enables the in-process tier with room for maxItems entries.
func WithLocalCache(maxItems int64) Option {
	return func(c *Config) error {
		if maxItems <= 0 {
			return ErrInvalidLocalSize
		}
		c.LocalCache = LocalCacheConfig{Enabled: true, MaxItems: maxItems}
		return nil
	}
}

// WithoutLocalCache serves every read from the persistent store.
func WithoutLocalCache() Option {
	return func(c *Config) error {
		c.LocalCache.Enabled = false
		return nil
	}
}

// WithRedis sets the persistent store connection.
func WithRedis(opts *redis.Options) Option {
	return func(c *Config) error {
		if opts == nil {
			return errors.New("redis options must not be nil")
		}
		c.Storage.Redis = opts
		return nil
	}
}

// WithSerialization selects the entry codec ("json" or "gob").
func WithSerialization(typ string) Option {
	return func(c *Config) error {
		codec, err := serialization.New(typ)
		if err != nil {
			return err
		}
		c.Serialization = codec
		return nil
	}
}

// WithBloomRefresh sets how long a bloom filter negative is trusted before the
// filter is rebuilt from the store. Zero sends every lookup to the store.
func WithBloomRefresh(interval time.Duration) Option {
	return func(c *Config) error {
		if interval < 0 {
			return errors.New("bloom refresh interval must not be negative")
		}
		c.BloomFilterSettings.RefreshInterval = interval
		return nil
	}
}

// WithRetry overrides the retry policy.
func WithRetry(retry RetryConfig) Option {
	return func(c *Config) error {
		c.ResilienceConfig.Retry = retry
		return nil
	}
}

// WithRemote overrides the remote provider settings. Zero fields keep their defaults.
func WithRemote(remote RemoteConfig) Option {
	return func(c *Config) error {
		if remote.UniProtBaseURL != "" {
			c.Remote.UniProtBaseURL = remote.UniProtBaseURL
		}
		if remote.AlphaFoldBaseURL != "" {
			c.Remote.AlphaFoldBaseURL = remote.AlphaFoldBaseURL
		}
		if remote.AlphaFoldFilesURL != "" {
			c.Remote.AlphaFoldFilesURL = remote.AlphaFoldFilesURL
		}
		if remote.BlastURL != "" {
			c.Remote.BlastURL = remote.BlastURL
		}
		if remote.BlastProgram != "" {
			c.Remote.BlastProgram = remote.BlastProgram
		}
		if remote.BlastDatabase != "" {
			c.Remote.BlastDatabase = remote.BlastDatabase
		}
		if remote.Timeout > 0 {
			c.Remote.Timeout = remote.Timeout
		}
		if remote.SearchLimit > 0 {
			c.Remote.SearchLimit = remote.SearchLimit
		}
		if remote.HTTPClient != nil {
			c.Remote.HTTPClient = remote.HTTPClient
		}
		return nil
	}
}

// WithWarmupKeys lists keys copied into the local tier after initialization.
func WithWarmupKeys(collection models.Collection, keys ...string) Option {
	return func(c *Config) error {
		if !collection.Valid() {
			return models.ErrUnknownCollection
		}
		if c.WarmupKeys == nil {
			c.WarmupKeys = make(map[models.Collection][]string)
		}
		c.WarmupKeys[collection] = append(c.WarmupKeys[collection], keys...)
		return nil
	}
}

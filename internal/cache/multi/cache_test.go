package multi

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goflare.io/foldscope/internal/config"
	"goflare.io/foldscope/internal/models"
	"goflare.io/foldscope/internal/store"
	"goflare.io/foldscope/pkg/protein"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig(t *testing.T, clock *testClock, opts ...config.Option) *config.Config {
	t.Helper()

	base := []config.Option{
		config.WithLogger(zaptest.NewLogger(t)),
		config.WithClock(clock.Now),
		config.WithKeyPrefix("test"),
		config.WithRetry(config.RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   time.Millisecond,
			MaxDelay:    time.Millisecond,
			Factor:      1,
		}),
	}
	cfg, err := config.NewConfig(append(base, opts...)...)
	require.NoError(t, err)
	return cfg
}

func newRedisStore(t *testing.T, cfg *config.Config) (*store.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	return store.NewRedis(client, cfg.KeyPrefix, cfg.Serialization, cfg.Logger), mr
}

func newReadyCache(t *testing.T, clock *testClock, opts ...config.Option) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	cfg := testConfig(t, clock, opts...)
	s, mr := newRedisStore(t, cfg)
	c, err := New(cfg, s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Initialize(context.Background()))
	require.Equal(t, StateReady, c.State())
	return c, mr
}

func TestRoundTrip(t *testing.T) {
	for _, name := range []string{"with local tier", "store only"} {
		t.Run(name, func(t *testing.T) {
			var opts []config.Option
			if name == "store only" {
				opts = append(opts, config.WithoutLocalCache())
			}
			c, _ := newReadyCache(t, newTestClock(), opts...)
			ctx := context.Background()

			results := []protein.Protein{
				{ID: "P01308", Name: "Insulin", Length: 110, Organism: "Homo sapiens", UniProtID: "P01308"},
			}
			require.NoError(t, c.Set(ctx, models.Searches, "insulin", results))

			var got []protein.Protein
			found, err := c.Get(ctx, models.Searches, "insulin", &got)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, results, got)
			assert.EqualValues(t, 1, c.Metrics().Hits)
		})
	}
}

func TestStaleEntryIsMiss(t *testing.T) {
	clock := newTestClock()
	c, mr := newReadyCache(t, clock)
	ctx := context.Background()

	payload := protein.StructureData{PDBID: "P06213", ConfidenceScore: 87.5, Coordinates: "https://example.test/P06213.cif"}
	require.NoError(t, c.Set(ctx, models.Structures, "P06213", payload))

	var got protein.StructureData
	found, err := c.Get(ctx, models.Structures, "P06213", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, payload, got)

	clock.Advance(24*time.Hour + time.Millisecond)

	found, err = c.Get(ctx, models.Structures, "P06213", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.EqualValues(t, 1, c.Metrics().Stale)

	// stale entries are not evicted from storage
	assert.True(t, mr.Exists("test:structures"))
	entry, ok, err := c.Lookup(ctx, models.Structures, "P06213")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 24*time.Hour+time.Millisecond, entry.Age(clock.Now()))

	// a fresh write replaces the stale one
	require.NoError(t, c.Set(ctx, models.Structures, "P06213", payload))
	found, err = c.Get(ctx, models.Structures, "P06213", &got)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestStaleAtExactTTL(t *testing.T) {
	clock := newTestClock()
	c, _ := newReadyCache(t, clock, config.WithTTL(time.Hour))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, models.Searches, "q", []string{"a"}))

	clock.Advance(time.Hour - time.Millisecond)
	var got []string
	found, err := c.Get(ctx, models.Searches, "q", &got)
	require.NoError(t, err)
	assert.True(t, found)

	clock.Advance(time.Millisecond)
	found, err = c.Get(ctx, models.Searches, "q", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStaleAcrossRestart(t *testing.T) {
	clock := newTestClock()
	cfg := testConfig(t, clock)
	s, mr := newRedisStore(t, cfg)

	first, err := New(cfg, s)
	require.NoError(t, err)
	require.NoError(t, first.Initialize(context.Background()))
	require.NoError(t, first.Set(context.Background(), models.Structures, "P69905", protein.StructureData{PDBID: "P69905"}))
	require.NoError(t, first.Close())

	cfg2 := testConfig(t, clock)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	second, err := New(cfg2, store.NewRedis(client, cfg2.KeyPrefix, cfg2.Serialization, cfg2.Logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })
	require.NoError(t, second.Initialize(context.Background()))

	var got protein.StructureData
	found, err := second.Get(context.Background(), models.Structures, "P69905", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "P69905", got.PDBID)

	clock.Advance(25 * time.Hour)
	found, err = second.Get(context.Background(), models.Structures, "P69905", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCollectionIsolation(t *testing.T) {
	c, _ := newReadyCache(t, newTestClock())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, models.Searches, "X", "v1"))
	require.NoError(t, c.Set(ctx, models.Structures, "X", "v2"))

	var got string
	found, err := c.Get(ctx, models.Searches, "X", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v1", got)

	found, err = c.Get(ctx, models.Structures, "X", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v2", got)

	require.NoError(t, c.Clear(ctx, models.Structures))
	found, err = c.Get(ctx, models.Structures, "X", &got)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = c.Get(ctx, models.Searches, "X", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", got)
}

func TestGetReturnsIndependentCopies(t *testing.T) {
	c, _ := newReadyCache(t, newTestClock())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, models.Searches, "q", []protein.Protein{{ID: "A"}}))

	var first []protein.Protein
	found, err := c.Get(ctx, models.Searches, "q", &first)
	require.NoError(t, err)
	require.True(t, found)
	first[0].ID = "mutated"

	var second []protein.Protein
	found, err = c.Get(ctx, models.Searches, "q", &second)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "A", second[0].ID)
}

func TestOverwriteLastWriteWins(t *testing.T) {
	clock := newTestClock()
	c, _ := newReadyCache(t, clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, models.Searches, "q", "old"))
	clock.Advance(time.Minute)
	require.NoError(t, c.Set(ctx, models.Searches, "q", "new"))

	var got string
	found, err := c.Get(ctx, models.Searches, "q", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", got)

	entry, ok, err := c.Lookup(ctx, models.Searches, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, clock.Now(), entry.StoredAt.UTC())
}

func TestUnknownCollection(t *testing.T) {
	c, _ := newReadyCache(t, newTestClock())
	ctx := context.Background()
	bogus := models.Collection("annotations")

	_, err := c.Get(ctx, bogus, "k", new(string))
	assert.ErrorIs(t, err, models.ErrUnknownCollection)
	assert.ErrorIs(t, c.Set(ctx, bogus, "k", "v"), models.ErrUnknownCollection)
	assert.ErrorIs(t, c.Clear(ctx, bogus), models.ErrUnknownCollection)
	_, _, err = c.Lookup(ctx, bogus, "k")
	assert.ErrorIs(t, err, models.ErrUnknownCollection)
}

func TestUnencodableValue(t *testing.T) {
	c, _ := newReadyCache(t, newTestClock())
	err := c.Set(context.Background(), models.Searches, "q", make(chan int))
	assert.Error(t, err)
}

func TestBeforeInitialize(t *testing.T) {
	clock := newTestClock()
	cfg := testConfig(t, clock)
	s, mr := newRedisStore(t, cfg)
	c, err := New(cfg, s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	assert.Equal(t, StateUninitialized, c.State())
	require.NoError(t, c.Set(ctx, models.Searches, "q", "v"))
	assert.EqualValues(t, 1, c.Metrics().Dropped)
	assert.False(t, mr.Exists("test:searches"))

	var got string
	found, err := c.Get(ctx, models.Searches, "q", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Initialize(ctx))
	found, err = c.Get(ctx, models.Searches, "q", &got)
	require.NoError(t, err)
	assert.False(t, found, "dropped write must not appear after initialization")

	require.NoError(t, c.Set(ctx, models.Searches, "q", "v"))
	found, err = c.Get(ctx, models.Searches, "q", &got)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestStorageUnavailable(t *testing.T) {
	clock := newTestClock()
	cfg := testConfig(t, clock)
	s, mr := newRedisStore(t, cfg)
	mr.Close()

	c, err := New(cfg, s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	err = c.Initialize(ctx)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Equal(t, StateUnavailable, c.State())

	require.NoError(t, c.Set(ctx, models.Structures, "P06213", "payload"))
	var got string
	found, err := c.Get(ctx, models.Structures, "P06213", &got)
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, c.Clear(ctx, models.Structures))
}

func TestStorageErrorsAreAbsorbed(t *testing.T) {
	clock := newTestClock()
	cfg := testConfig(t, clock, config.WithoutLocalCache())
	fs := &failingStore{}
	c, err := New(cfg, fs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Initialize(ctx))

	fs.setFailing(true)
	require.NoError(t, c.Set(ctx, models.Searches, "q", "v"))

	var got string
	found, err := c.Get(ctx, models.Searches, "q", &got)
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, c.Clear(ctx, models.Searches))

	assert.GreaterOrEqual(t, c.Metrics().StorageErrors, int64(3))
}

func TestLocalTierServesWhenStoreWriteFails(t *testing.T) {
	clock := newTestClock()
	cfg := testConfig(t, clock)
	fs := &failingStore{}
	c, err := New(cfg, fs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()
	require.NoError(t, c.Initialize(ctx))

	fs.setFailing(true)
	require.NoError(t, c.Set(ctx, models.Searches, "q", "local"))
	c.local.Wait()

	var got string
	found, err := c.Get(ctx, models.Searches, "q", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "local", got)
}

func TestBloomFilterSkipsStore(t *testing.T) {
	clock := newTestClock()
	cfg := testConfig(t, clock, config.WithoutLocalCache())
	fs := &failingStore{}
	c, err := New(cfg, fs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()
	require.NoError(t, c.Initialize(ctx))

	var got string
	found, err := c.Get(ctx, models.Searches, "never-stored", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, fs.gets())
}

func TestInitializeRebuildsBloomFromStore(t *testing.T) {
	clock := newTestClock()
	cfg := testConfig(t, clock, config.WithoutLocalCache())
	fs := &failingStore{}
	fs.seed(models.Structures, models.NewEntry("P06213", []byte(`"seeded"`+"\n"), clock.Now()))

	c, err := New(cfg, fs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Initialize(context.Background()))

	var got string
	found, err := c.Get(context.Background(), models.Structures, "P06213", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "seeded", got)
}

func newSharedCache(t *testing.T, clock *testClock, mr *miniredis.Miniredis, opts ...config.Option) *Cache {
	t.Helper()

	cfg := testConfig(t, clock, opts...)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	c, err := New(cfg, store.NewRedis(client, cfg.KeyPrefix, cfg.Serialization, cfg.Logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Initialize(context.Background()))
	return c
}

func TestBloomRefreshSeesWritesFromOtherProcess(t *testing.T) {
	clock := newTestClock()
	a, mr := newReadyCache(t, clock, config.WithoutLocalCache())
	b := newSharedCache(t, clock, mr)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, models.Structures, "P06213", protein.StructureData{PDBID: "P06213"}))

	var got protein.StructureData
	found, err := a.Get(ctx, models.Structures, "P06213", &got)
	require.NoError(t, err)
	assert.False(t, found, "negatives are trusted until the filter expires")

	clock.Advance(30 * time.Second)
	found, err = a.Get(ctx, models.Structures, "P06213", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "P06213", got.PDBID)

	found, err = a.Get(ctx, models.Structures, "never-stored", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBloomRefreshDisabled(t *testing.T) {
	clock := newTestClock()
	a, mr := newReadyCache(t, clock, config.WithBloomRefresh(0))
	b := newSharedCache(t, clock, mr)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, models.Searches, "insulin", []string{"P01308"}))

	var got []string
	found, err := a.Get(ctx, models.Searches, "insulin", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{"P01308"}, got)
}

func TestExpiredBloomRebuildsFromStore(t *testing.T) {
	clock := newTestClock()
	cfg := testConfig(t, clock, config.WithoutLocalCache())
	fs := &failingStore{}
	c, err := New(cfg, fs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()
	require.NoError(t, c.Initialize(ctx))

	fs.seed(models.Searches, models.NewEntry("late", []byte(`"other"`), clock.Now()))
	clock.Advance(time.Minute)

	fs.setFailing(true)
	var got string
	found, err := c.Get(ctx, models.Searches, "late", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Positive(t, c.Metrics().StorageErrors)

	// a failed refresh leaves the filter incomplete, so lookups reach the store
	fs.setFailing(false)
	found, err = c.Get(ctx, models.Searches, "late", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "other", got)
}

func TestWarmupLoadsFreshKeys(t *testing.T) {
	clock := newTestClock()
	fs := &failingStore{}
	fs.seed(models.Structures, models.NewEntry("fresh", []byte(`"a"`), clock.Now()))
	fs.seed(models.Structures, models.NewEntry("stale", []byte(`"b"`), clock.Now().Add(-48*time.Hour)))

	cfg := testConfig(t, clock, config.WithWarmupKeys(models.Structures, "fresh", "stale", "missing"))
	c, err := New(cfg, fs)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Initialize(context.Background()))

	_, ok := c.local.Get(context.Background(), models.Structures, "fresh")
	assert.True(t, ok)
	_, ok = c.local.Get(context.Background(), models.Structures, "stale")
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	c, _ := newReadyCache(t, newTestClock())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, c.Set(ctx, models.Searches, "shared", i))
		}(i)
		go func() {
			defer wg.Done()
			var got int
			_, err := c.Get(ctx, models.Searches, "shared", &got)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var got int
	found, err := c.Get(ctx, models.Searches, "shared", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.GreaterOrEqual(t, got, 0)
	assert.Less(t, got, 20)
}

// failingStore is an in-memory store whose operations can be switched to fail.
type failingStore struct {
	mu       sync.Mutex
	failing  bool
	getCalls int
	data     map[models.Collection]map[string]*models.Entry
}

var errInjected = errors.New("injected store failure")

func (f *failingStore) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *failingStore) gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

func (f *failingStore) seed(collection models.Collection, entry *models.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		f.data = make(map[models.Collection]map[string]*models.Entry)
	}
	if f.data[collection] == nil {
		f.data[collection] = make(map[string]*models.Entry)
	}
	f.data[collection][entry.Key] = entry
}

func (f *failingStore) Open(context.Context) error { return nil }

func (f *failingStore) Get(_ context.Context, collection models.Collection, key string) (*models.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.failing {
		return nil, errInjected
	}
	entry, ok := f.data[collection][key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return entry, nil
}

func (f *failingStore) Put(_ context.Context, collection models.Collection, entry *models.Entry) error {
	if f.isFailing() {
		return errInjected
	}
	f.seed(collection, entry)
	return nil
}

func (f *failingStore) Keys(_ context.Context, collection models.Collection) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return nil, errInjected
	}
	keys := make([]string, 0, len(f.data[collection]))
	for k := range f.data[collection] {
		keys = append(keys, k)
	}
	return keys, nil
}

func (f *failingStore) Clear(_ context.Context, collection models.Collection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errInjected
	}
	delete(f.data, collection)
	return nil
}

func (f *failingStore) Close() error { return nil }

func (f *failingStore) isFailing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failing
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"goflare.io/foldscope/internal/models"
	"goflare.io/foldscope/pkg/serialization"
)

func newTestRedis(t *testing.T, codecType string) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	codec, err := serialization.New(codecType)
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedis(client, "test", codec, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisRoundTrip(t *testing.T) {
	for _, codecType := range []string{serialization.JSONType, serialization.GobType} {
		t.Run(codecType, func(t *testing.T) {
			s, _ := newTestRedis(t, codecType)
			ctx := context.Background()
			require.NoError(t, s.Open(ctx))

			storedAt := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
			in := models.NewEntry("P06213", []byte(`{"pdbId":"P06213"}`), storedAt)
			require.NoError(t, s.Put(ctx, models.Structures, in))

			out, err := s.Get(ctx, models.Structures, "P06213")
			require.NoError(t, err)
			assert.Equal(t, in.Key, out.Key)
			assert.Equal(t, in.Payload, out.Payload)
			assert.True(t, storedAt.Equal(out.StoredAt))
		})
	}
}

func TestRedisMissingKey(t *testing.T) {
	s, _ := newTestRedis(t, serialization.JSONType)

	_, err := s.Get(context.Background(), models.Searches, "nothing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisCollectionsAreDisjoint(t *testing.T) {
	s, mr := newTestRedis(t, serialization.JSONType)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, models.Searches, models.NewEntry("X", []byte("search"), time.Now())))
	require.NoError(t, s.Put(ctx, models.Structures, models.NewEntry("X", []byte("structure"), time.Now())))

	got, err := s.Get(ctx, models.Searches, "X")
	require.NoError(t, err)
	assert.Equal(t, []byte("search"), got.Payload)

	got, err = s.Get(ctx, models.Structures, "X")
	require.NoError(t, err)
	assert.Equal(t, []byte("structure"), got.Payload)

	assert.True(t, mr.Exists("test:searches"))
	assert.True(t, mr.Exists("test:structures"))
}

func TestRedisKeysAndClear(t *testing.T) {
	s, _ := newTestRedis(t, serialization.JSONType)
	ctx := context.Background()

	for _, k := range []string{"insulin", "hemoglobin"} {
		require.NoError(t, s.Put(ctx, models.Searches, models.NewEntry(k, []byte("[]"), time.Now())))
	}
	require.NoError(t, s.Put(ctx, models.Structures, models.NewEntry("P69905", []byte("{}"), time.Now())))

	keys, err := s.Keys(ctx, models.Searches)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"insulin", "hemoglobin"}, keys)

	require.NoError(t, s.Clear(ctx, models.Searches))
	keys, err = s.Keys(ctx, models.Searches)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, s.Clear(ctx, models.Searches))

	_, err = s.Get(ctx, models.Structures, "P69905")
	assert.NoError(t, err)
}

func TestRedisOverwrite(t *testing.T) {
	s, _ := newTestRedis(t, serialization.JSONType)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, models.Searches, models.NewEntry("q", []byte("old"), time.Now().Add(-time.Hour))))
	require.NoError(t, s.Put(ctx, models.Searches, models.NewEntry("q", []byte("new"), time.Now())))

	got, err := s.Get(ctx, models.Searches, "q")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got.Payload)
}

func TestRedisUnavailable(t *testing.T) {
	s, mr := newTestRedis(t, serialization.JSONType)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.Error(t, s.Open(ctx))
	_, err := s.Get(ctx, models.Searches, "q")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRedisCorruptEntry(t *testing.T) {
	s, mr := newTestRedis(t, serialization.JSONType)
	mr.HSet("test:structures", "P06213", "{garbage")

	_, err := s.Get(context.Background(), models.Structures, "P06213")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

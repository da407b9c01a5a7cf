package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"goflare.io/foldscope/internal/models"
	"goflare.io/foldscope/internal/utils"
	"goflare.io/foldscope/pkg/serialization"
)

// Redis keeps each collection in one hash: field = key, value = encoded entry.
// Fields never expire; staleness is decided by the reader.
type Redis struct {
	client redis.UniversalClient
	prefix string
	codec  serialization.Codec
	logger *zap.Logger
}

// NewRedis creates a Redis store on top of an existing client.
func NewRedis(client redis.UniversalClient, prefix string, codec serialization.Codec, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client: client,
		prefix: prefix,
		codec:  codec,
		logger: logger,
	}
}

// Open pings the server.
func (r *Redis) Open(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// Get loads one entry.
func (r *Redis) Get(ctx context.Context, collection models.Collection, key string) (*models.Entry, error) {
	data, err := r.client.HGet(ctx, utils.CollectionKey(r.prefix, collection), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis hget %s/%s: %w", collection, key, err)
	}

	var entry models.Entry
	if err := r.codec.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode entry %s/%s: %w", collection, key, err)
	}
	return models.NewEntry(entry.Key, entry.Payload, entry.StoredAt), nil
}

// Put upserts one entry.
func (r *Redis) Put(ctx context.Context, collection models.Collection, entry *models.Entry) error {
	data, err := r.codec.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode entry %s/%s: %w", collection, entry.Key, err)
	}

	if err := r.client.HSet(ctx, utils.CollectionKey(r.prefix, collection), entry.Key, data).Err(); err != nil {
		return fmt.Errorf("redis hset %s/%s: %w", collection, entry.Key, err)
	}
	return nil
}

// Keys lists every key stored in a collection, fresh or stale.
func (r *Redis) Keys(ctx context.Context, collection models.Collection) ([]string, error) {
	keys, err := r.client.HKeys(ctx, utils.CollectionKey(r.prefix, collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys %s: %w", collection, err)
	}
	return keys, nil
}

// Clear removes a whole collection.
func (r *Redis) Clear(ctx context.Context, collection models.Collection) error {
	if err := r.client.Del(ctx, utils.CollectionKey(r.prefix, collection)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", collection, err)
	}
	r.logger.Debug("Cleared collection", zap.String("collection", string(collection)))
	return nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

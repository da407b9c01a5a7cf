package multi

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/foldscope/internal/config"
	"goflare.io/foldscope/internal/models"
	"goflare.io/foldscope/internal/retrier"
	"goflare.io/foldscope/internal/store"
)

// Resilience runs store operations behind a circuit breaker and a retrier.
type Resilience struct {
	store   store.Store
	breaker *gobreaker.CircuitBreaker
	retrier *retrier.Retrier
	logger  *zap.Logger
}

// NewResilience wraps s with the storage breaker and retry policy from cfg.
func NewResilience(cfg *config.Config, s store.Store) (*Resilience, error) {
	r, err := retrier.New(cfg.ResilienceConfig.Retry, retrier.ExponentialBackoff, isRetryable)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrier: %w", err)
	}

	logger := cfg.Logger
	settings := cfg.ResilienceConfig.StorageCircuitBreaker
	settings.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, store.ErrNotFound)
	}
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("Circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}

	return &Resilience{
		store:   s,
		breaker: gobreaker.NewCircuitBreaker(settings),
		retrier: r,
		logger:  logger,
	}, nil
}

func isRetryable(err error) bool {
	return !errors.Is(err, store.ErrNotFound) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (r *Resilience) execute(ctx context.Context, fn func() error) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.retrier.Run(ctx, fn)
	})
	return err
}

// Open checks the store once, without retries, so an absent backend is reported quickly.
func (r *Resilience) Open(ctx context.Context) error {
	return r.store.Open(ctx)
}

// Get loads an entry.
func (r *Resilience) Get(ctx context.Context, collection models.Collection, key string) (*models.Entry, error) {
	var entry *models.Entry
	err := r.execute(ctx, func() error {
		var err error
		entry, err = r.store.Get(ctx, collection, key)
		return err
	})
	return entry, err
}

// Put writes an entry.
func (r *Resilience) Put(ctx context.Context, collection models.Collection, entry *models.Entry) error {
	return r.execute(ctx, func() error {
		return r.store.Put(ctx, collection, entry)
	})
}

// Keys lists a collection's keys.
func (r *Resilience) Keys(ctx context.Context, collection models.Collection) ([]string, error) {
	var keys []string
	err := r.execute(ctx, func() error {
		var err error
		keys, err = r.store.Keys(ctx, collection)
		return err
	})
	return keys, err
}

// Clear removes a collection.
func (r *Resilience) Clear(ctx context.Context, collection models.Collection) error {
	return r.execute(ctx, func() error {
		return r.store.Clear(ctx, collection)
	})
}

// Close closes the store.
func (r *Resilience) Close() error {
	return r.store.Close()
}

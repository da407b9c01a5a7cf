package retrier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"goflare.io/foldscope/internal/config"
)

const (
	minMaxAttempts = 1
	minBaseDelay   = time.Millisecond
	minFactor      = 1.0
	maxJitter      = 1.0
)

// ExponentialBackoff multiplies the delay by the factor after every attempt.
// LinearBackoff grows the delay by the base delay after every attempt.
const (
	ExponentialBackoff BackoffStrategy = iota
	LinearBackoff
)

var (
	// ErrInvalidMaxAttempts is returned when the max attempts parameter is invalid.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrInvalidBaseDelay is returned when the base delay parameter is invalid.
	ErrInvalidBaseDelay = errors.New("base delay must be at least 1ms")
	// ErrInvalidFactor is returned when the factor parameter is invalid.
	ErrInvalidFactor = errors.New("factor must be at least 1.0")
	// ErrInvalidJitter is returned when the jitter parameter is invalid.
	ErrInvalidJitter = errors.New("jitter must be between 0 and 1")
)

// BackoffStrategy selects how delays grow between attempts.
type BackoffStrategy int

// Retrier runs a function until it succeeds, fails permanently, or runs out of attempts.
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	factor      float64
	jitter      float64
	strategy    BackoffStrategy

	// TempErrorFunc decides whether an error is worth retrying. Defaults to IsTemporary.
	TempErrorFunc func(error) bool
}

// New creates a Retrier from a RetryConfig.
func New(cfg config.RetryConfig, strategy BackoffStrategy, tempErrorFunc func(error) bool) (*Retrier, error) {
	if cfg.MaxAttempts < minMaxAttempts {
		return nil, ErrInvalidMaxAttempts
	}
	if cfg.BaseDelay < minBaseDelay {
		return nil, ErrInvalidBaseDelay
	}
	if cfg.Factor < minFactor {
		return nil, ErrInvalidFactor
	}
	if cfg.Jitter < 0 || cfg.Jitter > maxJitter {
		return nil, ErrInvalidJitter
	}

	maxDelay := cfg.MaxDelay
	if maxDelay < cfg.BaseDelay {
		maxDelay = cfg.BaseDelay
	}

	return &Retrier{
		maxAttempts:   cfg.MaxAttempts,
		baseDelay:     cfg.BaseDelay,
		maxDelay:      maxDelay,
		factor:        cfg.Factor,
		jitter:        cfg.Jitter,
		strategy:      strategy,
		TempErrorFunc: tempErrorFunc,
	}, nil
}

// Run executes fn, retrying temporary errors with backoff.
func (r *Retrier) Run(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		isTemp := IsTemporary
		if r.TempErrorFunc != nil {
			isTemp = r.TempErrorFunc
		}
		if !isTemp(err) {
			return err
		}

		if attempt == r.maxAttempts-1 {
			break
		}

		timer := time.NewTimer(r.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}

// calculateDelay returns the wait before the attempt following the given one.
func (r *Retrier) calculateDelay(attempt int) time.Duration {
	var delay float64

	switch r.strategy {
	case LinearBackoff:
		delay = float64(r.baseDelay) * float64(attempt+1)
	default:
		delay = float64(r.baseDelay) * math.Pow(r.factor, float64(attempt))
	}

	if delay > float64(r.maxDelay) {
		delay = float64(r.maxDelay)
	}

	delay += rand.Float64() * r.jitter * delay
	return time.Duration(delay)
}

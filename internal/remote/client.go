// Package remote fetches protein metadata from UniProt, predicted structures
// from AlphaFold and sequence similarity searches from NCBI BLAST.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/foldscope/internal/config"
	"goflare.io/foldscope/internal/retrier"
)

// ErrNotFound is wrapped by APIError when a provider answers 404.
var ErrNotFound = errors.New("not found")

// maxErrorBody bounds how much of a failed response is kept for the error message.
const maxErrorBody = 512

// APIError describes a failed provider call. StatusCode is zero for transport errors.
type APIError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Temporary reports whether the call may succeed if retried.
func (e *APIError) Temporary() bool {
	return e.StatusCode == 0 || e.StatusCode >= http.StatusInternalServerError
}

// Client talks to the UniProt, AlphaFold and NCBI BLAST APIs.
type Client struct {
	http         *http.Client
	uniprotURL   string
	alphafoldURL string
	filesURL     string
	blastURL     string
	blastProgram string
	blastDB      string
	searchLimit  int
	breaker      *gobreaker.CircuitBreaker
	retrier      *retrier.Retrier
	now          func() time.Time
	tracer       trace.Tracer
	logger       *zap.Logger
}

// New creates a Client from the remote and resilience settings of cfg.
func New(cfg *config.Config) (*Client, error) {
	r, err := retrier.New(cfg.ResilienceConfig.Retry, retrier.ExponentialBackoff, isRetryable)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrier: %w", err)
	}

	httpClient := cfg.Remote.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Remote.Timeout}
	}

	logger := cfg.Logger
	settings := cfg.ResilienceConfig.RemoteCircuitBreaker
	settings.IsSuccessful = isSuccessful
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warn("Circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}

	return &Client{
		http:         httpClient,
		uniprotURL:   cfg.Remote.UniProtBaseURL,
		alphafoldURL: cfg.Remote.AlphaFoldBaseURL,
		filesURL:     cfg.Remote.AlphaFoldFilesURL,
		blastURL:     cfg.Remote.BlastURL,
		blastProgram: cfg.Remote.BlastProgram,
		blastDB:      cfg.Remote.BlastDatabase,
		searchLimit:  cfg.Remote.SearchLimit,
		breaker:      gobreaker.NewCircuitBreaker(settings),
		retrier:      r,
		now:          cfg.Now,
		tracer:       otel.Tracer("goflare.io/foldscope/remote"),
		logger:       logger,
	}, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return retrier.IsTemporary(err)
}

// isSuccessful keeps client errors from tripping the breaker: a 404 says nothing about provider health.
func isSuccessful(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusBadRequest && apiErr.StatusCode < http.StatusInternalServerError
	}
	return err == nil
}

// getJSON issues a GET and decodes the response body into dst.
func (c *Client) getJSON(ctx context.Context, op, url string, dst any) error {
	return c.call(ctx, op, url, newGet(url, "application/json"), func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
		}
		return nil
	})
}

// requestFunc builds the request of one attempt, so a POST body is fresh on every retry.
type requestFunc func(ctx context.Context) (*http.Request, error)

func newGet(url, accept string) requestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", accept)
		return req, nil
	}
}

// call runs one provider call through the breaker and the retrier.
// read is handed every 2xx response.
func (c *Client) call(ctx context.Context, op, url string, build requestFunc, read func(*http.Response) error) error {
	ctx, span := c.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("url", url)))
	defer span.End()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.retrier.Run(ctx, func() error {
			return c.fetch(ctx, op, build, read)
		})
	})
	if err != nil {
		span.RecordError(err)
		c.logger.Debug("Remote call failed", zap.String("op", op), zap.String("url", url), zap.Error(err))
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &APIError{Op: op, Err: err}
		}
	}
	return err
}

func (c *Client) fetch(ctx context.Context, op string, build requestFunc, read func(*http.Response) error) error {
	req, err := build(ctx)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Err: ErrNotFound}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response %q", body)}
	}
	return read(resp)
}

package remote

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status probes both providers concurrently. A provider is up when it answers
// with anything but a server error. Probes bypass the breaker.
func (c *Client) Status(ctx context.Context) map[string]bool {
	names := []string{"uniprot", "alphafold"}
	targets := []string{c.uniprotURL, c.alphafoldURL}
	up := make([]bool, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			up[i] = c.probe(gctx, target)
			return nil
		})
	}
	_ = g.Wait()

	status := make(map[string]bool, len(names))
	for i, name := range names {
		status[name] = up[i]
	}
	return status
}

func (c *Client) probe(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Provider unreachable", zap.String("url", target), zap.Error(err))
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

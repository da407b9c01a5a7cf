package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goflare.io/foldscope"
)

var (
	redisAddr    string
	cacheTTL     time.Duration
	noLocalCache bool
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "foldscope",
	Short: "Search proteins, fetch predicted structures and measure them",
	Long: `foldscope queries UniProt and AlphaFold through a Redis-backed response cache,
runs NCBI BLAST searches, downloads model files and measures distances, angles
and triangle surfaces between 3D points.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "localhost:6379", "Redis address of the response cache")
	rootCmd.PersistentFlags().DurationVar(&cacheTTL, "ttl", 24*time.Hour, "how long cached responses are served")
	rootCmd.PersistentFlags().BoolVar(&noLocalCache, "no-local-cache", false, "serve every cached read from Redis")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// openFoldscope builds a client from the persistent flags. The caller closes it.
func openFoldscope(ctx context.Context) (*foldscope.Foldscope, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	opts := []foldscope.Option{
		foldscope.WithLogger(logger),
		foldscope.WithRedis(&redis.Options{Addr: redisAddr}),
		foldscope.WithTTL(cacheTTL),
	}
	if noLocalCache {
		opts = append(opts, foldscope.WithoutLocalCache())
	}
	return foldscope.New(ctx, opts...)
}

// withFoldscope runs fn against a client opened from the persistent flags.
func withFoldscope(cmd *cobra.Command, fn func(ctx context.Context, f *foldscope.Foldscope) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	f, err := openFoldscope(ctx)
	if err != nil {
		return err
	}
	defer f.Close()

	return fn(ctx, f)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

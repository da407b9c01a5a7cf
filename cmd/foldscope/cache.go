package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"goflare.io/foldscope"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the response cache",
}

var cacheClearCmd = &cobra.Command{
	Use:       "clear <searches|structures>",
	Short:     "Remove every cached response of one collection",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"searches", "structures"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFoldscope(cmd, func(ctx context.Context, f *foldscope.Foldscope) error {
			if err := f.ClearCache(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", args[0])
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check provider reachability and the response cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFoldscope(cmd, func(ctx context.Context, f *foldscope.Foldscope) error {
			return printJSON(cmd.OutOrStdout(), struct {
				Status  map[string]bool   `json:"status"`
				Metrics foldscope.Metrics `json:"metrics"`
			}{f.Status(ctx), f.CacheMetrics()})
		})
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd, statusCmd)
}

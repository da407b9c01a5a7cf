package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"goflare.io/foldscope"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search UniProtKB for proteins",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFoldscope(cmd, func(ctx context.Context, f *foldscope.Foldscope) error {
			proteins, err := f.SearchProteins(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), proteins)
		})
	},
}

var structureCmd = &cobra.Command{
	Use:   "structure <uniprot-id>",
	Short: "Fetch the AlphaFold prediction for a UniProt accession",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFoldscope(cmd, func(ctx context.Context, f *foldscope.Foldscope) error {
			data, err := f.Structure(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		})
	},
}

var annotationsCmd = &cobra.Command{
	Use:   "annotations <uniprot-id>",
	Short: "List the sequence features of a UniProt accession",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFoldscope(cmd, func(ctx context.Context, f *foldscope.Foldscope) error {
			annotations, err := f.Annotations(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), annotations)
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd, structureCmd, annotationsCmd)
}

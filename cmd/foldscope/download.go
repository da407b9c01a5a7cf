package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"goflare.io/foldscope"
)

var (
	downloadFormat string
	downloadOutput string
)

var downloadCmd = &cobra.Command{
	Use:   "download <uniprot-id>",
	Short: "Download the AlphaFold model file of a UniProt accession",
	Long: `download saves the AlphaFold model as <UNIPROT-ID>.<format> in the current
directory, or to --output. An output of "-" writes to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFoldscope(cmd, func(ctx context.Context, f *foldscope.Foldscope) error {
			data, err := f.DownloadStructure(ctx, args[0], downloadFormat)
			if err != nil {
				return err
			}
			path := outputPath(args[0], downloadFormat, downloadOutput)
			if err := writeOutput(cmd.OutOrStdout(), path, data); err != nil {
				return err
			}
			if path != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s (%d bytes)\n", path, len(data))
			}
			return nil
		})
	},
}

func outputPath(uniprotID, format, output string) string {
	if output != "" {
		return output
	}
	return strings.ToUpper(strings.TrimSpace(uniprotID)) + "." + strings.ToLower(format)
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save structure: %w", err)
	}
	return nil
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadFormat, "format", "f", "pdb", "model format: pdb or cif")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", `output file, "-" for stdout`)
	rootCmd.AddCommand(downloadCmd)
}

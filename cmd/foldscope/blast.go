package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"goflare.io/foldscope"
	"goflare.io/foldscope/pkg/protein"
)

var (
	blastWait     bool
	blastInterval time.Duration
	blastTimeout  time.Duration
)

var blastCmd = &cobra.Command{
	Use:   "blast <sequence|->",
	Short: "Run an NCBI BLAST search for a protein sequence",
	Long: `blast submits a protein sequence (raw or FASTA, "-" reads stdin) to NCBI BLAST
and prints the request id. With --wait it polls until the report is ready and
prints the hits.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sequence, err := readSequence(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		return withFoldscope(cmd, func(ctx context.Context, f *foldscope.Foldscope) error {
			rid, err := f.SubmitBlast(ctx, sequence)
			if err != nil {
				return err
			}
			if !blastWait {
				return printJSON(cmd.OutOrStdout(), protein.BlastResult{RID: rid, Status: protein.BlastWaiting})
			}

			ctx, cancel := context.WithTimeout(ctx, blastTimeout)
			defer cancel()
			result, err := f.WaitBlast(ctx, rid, blastInterval)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var blastResultsCmd = &cobra.Command{
	Use:   "results <rid>",
	Short: "Poll a submitted BLAST search once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFoldscope(cmd, func(ctx context.Context, f *foldscope.Foldscope) error {
			result, err := f.BlastResults(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

// readSequence joins the arguments, or reads r when the only argument is "-".
func readSequence(r io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("failed to read sequence: %w", err)
		}
		return string(b), nil
	}
	return strings.Join(args, "\n"), nil
}

func init() {
	blastCmd.Flags().BoolVar(&blastWait, "wait", false, "poll until the report is ready")
	blastCmd.Flags().DurationVar(&blastInterval, "interval", 10*time.Second, "time between polls")
	blastCmd.Flags().DurationVar(&blastTimeout, "timeout", 10*time.Minute, "give up waiting after this long")
	blastCmd.AddCommand(blastResultsCmd)
	rootCmd.AddCommand(blastCmd)
}

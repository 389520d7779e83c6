package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/curate-cli/internal/bucket"
	"github.com/sells-group/curate-cli/internal/ingest"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List the distinct system prompts of an input file",
	Long:  "Reads an input file, assigns bucket ids to its distinct system prompts in order of first appearance, and prints each bucket's record count and prompt preview.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("prompts"); err != nil {
			return err
		}

		input, _ := cmd.Flags().GetString("input")
		records, err := ingest.ReadFile(ctx, input, newPool())
		if err != nil {
			return err
		}

		m := bucket.Discover(records, keyFunc())
		formatSummaries(os.Stdout, bucket.Summarize(records, m, keyFunc()))

		if out, _ := cmd.Flags().GetString("write"); out != "" {
			if err := bucket.SaveMapping(out, m); err != nil {
				return err
			}
			zap.L().Info("prompt mapping written", zap.String("path", out), zap.Int("buckets", len(m)))
		}
		return nil
	},
}

func init() {
	promptsCmd.Flags().String("input", "", "input JSONL or JSON array file (required)")
	promptsCmd.Flags().String("write", "", "save the discovered mapping as YAML")
	_ = promptsCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(promptsCmd)
}

func formatSummaries(out io.Writer, summaries []bucket.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BUCKET\tRECORDS\tPROMPT")
	_, _ = fmt.Fprintln(w, "------\t-------\t------")
	for _, s := range summaries {
		preview := strings.Join(strings.Fields(s.Preview), " ")
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\n", s.ID, s.Count, preview)
	}
	_ = w.Flush()
}

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/curate-cli/internal/model"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Bucket records by system prompt and count their tokens",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initStages(ctx, "classify")
		if err != nil {
			return err
		}
		defer env.Close()

		input, _ := cmd.Flags().GetString("input")
		snap, err := loadSnapshot(ctx, input, env.Pool)
		if err != nil {
			return err
		}
		prompts, _ := cmd.Flags().GetString("prompts")
		m, err := resolveMapping(prompts, snap)
		if err != nil {
			return err
		}

		res, err := env.Classifier.Run(ctx, snap, m)
		if err != nil {
			return err
		}
		formatClassified(os.Stdout, res.Buckets)
		return nil
	},
}

func init() {
	classifyCmd.Flags().String("input", "", "input JSONL or JSON array file (required)")
	classifyCmd.Flags().String("prompts", "", "YAML prompt mapping; discovered from the input when empty")
	_ = classifyCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(classifyCmd)
}

func formatClassified(out io.Writer, buckets []model.BucketArtifacts) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BUCKET\tRECORDS\tTOKENS\tGROUP")
	_, _ = fmt.Fprintln(w, "------\t-------\t------\t-----")
	for _, b := range buckets {
		tokens := 0
		for _, r := range b.Counts {
			tokens += r.Total
		}
		g := model.Group{Bucket: b.Bucket}
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%s\n", b.Bucket, len(b.Counts), tokens, g)
	}
	_ = w.Flush()
}

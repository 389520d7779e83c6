package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/curate-cli/internal/model"
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Extract each bucket's top percentile by total token count",
	Long:  "Reads the classified count tables, keeps rows at or above each bucket's percentile threshold, and re-extracts their records from the input. The input must be the file that was classified.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initStages(ctx, "select")
		if err != nil {
			return err
		}
		defer env.Close()

		input, _ := cmd.Flags().GetString("input")
		snap, err := loadSnapshot(ctx, input, env.Pool)
		if err != nil {
			return err
		}

		res, err := env.Selector.Run(ctx, snap, cfg.Select.Percentile)
		if err != nil {
			return err
		}
		formatSelected(os.Stdout, res.Buckets)
		return nil
	},
}

func init() {
	selectCmd.Flags().String("input", "", "input file that was classified (required)")
	selectCmd.Flags().Float64("percentile", 0, "top percentile to keep, in (0, 100] (overrides select.percentile)")
	_ = selectCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(selectCmd)
}

func formatSelected(out io.Writer, results []model.PercentileResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BUCKET\tTHRESHOLD\tKEPT\tGROUP")
	_, _ = fmt.Fprintln(w, "------\t---------\t----\t-----")
	for _, r := range results {
		threshold := "-"
		if !r.Empty {
			threshold = strconv.FormatFloat(r.Threshold, 'f', -1, 64)
		}
		g := model.Group{Bucket: r.Bucket, Percentile: r.Percentile}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", r.Bucket, threshold, len(r.Counts), g)
	}
	_ = w.Flush()
}

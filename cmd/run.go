package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/curate-cli/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify an input and select its top percentile in one pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initStages(ctx, "run")
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

		res, err := pipeline.Run(ctx, env.Classifier, env.Selector, snap, m, cfg.Select.Percentile)
		if err != nil {
			return err
		}
		formatClassified(os.Stdout, res.Classified.Buckets)
		formatSelected(os.Stdout, res.Selected.Buckets)
		return nil
	},
}

func init() {
	runCmd.Flags().String("input", "", "input JSONL or JSON array file (required)")
	runCmd.Flags().String("prompts", "", "YAML prompt mapping; discovered from the input when empty")
	runCmd.Flags().Float64("percentile", 0, "top percentile to keep, in (0, 100] (overrides select.percentile)")
	_ = runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}

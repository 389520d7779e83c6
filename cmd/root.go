package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/curate-cli/internal/config"
	"github.com/sells-group/curate-cli/internal/pipeline"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "curate-cli",
	Short: "Dialogue dataset curation pipeline",
	Long:  "Buckets three-turn dialogue records by system prompt, counts tokens per turn, and extracts each bucket's top percentile by total token count.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyFlagOverrides(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("encoding", "", "token encoding (overrides tokenizer.encoding)")
	pf.Int("workers", 0, "worker pool size (overrides pool.workers)")
	pf.String("driver", "", "artifact store driver: fs, memory, sqlite, postgres (overrides store.driver)")
	pf.String("out", "", "output directory for the fs driver (overrides store.dir)")
	pf.String("database-url", "", "sqlite path or postgres URL (overrides store.database_url)")
	pf.Bool("normalize", false, "fold case, punctuation and whitespace in system prompts before matching")
}

// applyFlagOverrides copies explicitly set persistent flags over the loaded
// configuration.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("encoding") {
		c.Tokenizer.Encoding, _ = flags.GetString("encoding")
	}
	if flags.Changed("workers") {
		c.Pool.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("driver") {
		c.Store.Driver, _ = flags.GetString("driver")
	}
	if flags.Changed("out") {
		c.Store.Dir, _ = flags.GetString("out")
	}
	if flags.Changed("database-url") {
		c.Store.DatabaseURL, _ = flags.GetString("database-url")
	}
	if flags.Changed("normalize") {
		c.Buckets.Normalize, _ = flags.GetBool("normalize")
	}
	if flags.Lookup("percentile") != nil && flags.Changed("percentile") {
		c.Select.Percentile, _ = flags.GetFloat64("percentile")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("command failed", zap.String("kind", pipeline.Kind(err)), zap.Error(err))
		_ = zap.L().Sync()
		os.Exit(1)
	}
}

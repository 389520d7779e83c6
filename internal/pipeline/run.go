package pipeline

import (
	"context"

	"github.com/sells-group/curate-cli/internal/bucket"
)

// RunResult holds the output of both stages.
type RunResult struct {
	Classified *ClassifyResult
	Selected   *SelectResult
}

// Run classifies snap and then selects its top percentile. The percentile
// is checked before any work so a bad value never replaces artifacts.
func Run(ctx context.Context, c *Classifier, s *Selector, snap *Snapshot, m bucket.Mapping, percentile float64) (*RunResult, error) {
	if err := ValidatePercentile(percentile); err != nil {
		return nil, err
	}
	classified, err := c.Run(ctx, snap, m)
	if err != nil {
		return nil, err
	}
	selected, err := s.Run(ctx, snap, percentile)
	if err != nil {
		return nil, err
	}
	return &RunResult{Classified: classified, Selected: selected}, nil
}

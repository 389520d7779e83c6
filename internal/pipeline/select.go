package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/curate-cli/internal/model"
	"github.com/sells-group/curate-cli/internal/pool"
	"github.com/sells-group/curate-cli/internal/store"
)

// Selector runs the select stage against committed count tables.
type Selector struct {
	Pool  *pool.Pool
	Store store.ArtifactStore
}

// SelectResult is the committed output of a select run.
type SelectResult struct {
	Percentile float64
	Buckets    []model.PercentileResult
}

// ValidatePercentile checks that p lies in (0, 100].
func ValidatePercentile(p float64) error {
	if !(p > 0 && p <= 100) {
		return eris.Errorf("pipeline: percentile %v out of range (0, 100]", p)
	}
	return nil
}

// Run selects the top percentile of every classified bucket and commits
// the filtered artifacts. snap must be the sequence the count tables were
// built from.
func (s *Selector) Run(ctx context.Context, snap *Snapshot, percentile float64) (*SelectResult, error) {
	log := zap.L().With(zap.String("stage", "select"), zap.Float64("percentile", percentile))
	start := time.Now()

	if err := ValidatePercentile(percentile); err != nil {
		return nil, err
	}
	m, err := s.Store.Manifest(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load manifest")
	}
	if m.Records != snap.Len() || m.Fingerprint != snap.Fingerprint() {
		return nil, &SequenceMismatchError{
			ExpectedRecords:     m.Records,
			GotRecords:          snap.Len(),
			ExpectedFingerprint: m.Fingerprint,
			GotFingerprint:      snap.Fingerprint(),
		}
	}

	log.Info("pipeline: selecting records", zap.Int("buckets", len(m.Buckets)), zap.String("run_id", m.RunID))

	results, err := pool.Map(ctx, s.Pool, "select", m.Buckets, func(ctx context.Context, _ int, id int) (model.PercentileResult, error) {
		rows, err := s.Store.Counts(ctx, model.Group{Bucket: id})
		if err != nil {
			return model.PercentileResult{}, eris.Wrapf(err, "pipeline: load counts for bucket %d", id)
		}
		return SelectBucket(id, percentile, rows, snap)
	})
	if err != nil {
		return nil, err
	}

	if err := s.Store.CommitSelected(ctx, percentile, results); err != nil {
		return nil, eris.Wrap(err, "pipeline: commit selected artifacts")
	}

	selected := 0
	for _, r := range results {
		selected += len(r.Counts)
		log.Debug("pipeline: bucket selected",
			zap.Int("bucket", r.Bucket),
			zap.Bool("empty", r.Empty),
			zap.Float64("threshold", r.Threshold),
			zap.Int("rows", len(r.Counts)),
		)
	}
	log.Info("pipeline: select complete",
		zap.Int("buckets", len(results)),
		zap.Int("rows", selected),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &SelectResult{Percentile: percentile, Buckets: results}, nil
}

// SelectBucket filters one bucket's count rows to those at or above the
// percentile threshold and joins them back to their records in snap. Ties at
// the threshold are all kept. An empty table yields an empty result.
func SelectBucket(id int, percentile float64, rows []model.TokenCountRow, snap *Snapshot) (model.PercentileResult, error) {
	res := model.PercentileResult{
		Bucket:     id,
		Percentile: percentile,
		Records:    []model.Record{},
		Counts:     []model.TokenCountRow{},
	}

	totals := make([]float64, len(rows))
	for i, r := range rows {
		totals[i] = float64(r.Total)
	}
	threshold, ok := Quantile(totals, PercentileQuantile(percentile))
	if !ok {
		res.Empty = true
		return res, nil
	}
	res.Threshold = threshold

	for _, r := range rows {
		if float64(r.Total) < threshold {
			continue
		}
		if r.LineNum < 0 || r.LineNum >= snap.Len() {
			return model.PercentileResult{}, &SequenceMismatchError{
				ExpectedRecords:     snap.Len(),
				GotRecords:          snap.Len(),
				ExpectedFingerprint: snap.Fingerprint(),
				GotFingerprint:      snap.Fingerprint(),
				Line:                r.LineNum,
			}
		}
		res.Counts = append(res.Counts, r)
		res.Records = append(res.Records, snap.At(r.LineNum))
	}
	return res, nil
}

// Package pipeline implements the classify and select stages.
//
// Classify assigns every record to a bucket and counts its tokens. Select
// keeps, per bucket, the rows whose total token count reaches the bucket's
// percentile threshold and re-extracts their records from the snapshot.
// Both stages compute their full output on the worker pool and commit it to
// the artifact store in one call.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/curate-cli/internal/bucket"
	"github.com/sells-group/curate-cli/internal/model"
	"github.com/sells-group/curate-cli/internal/pool"
	"github.com/sells-group/curate-cli/internal/store"
	"github.com/sells-group/curate-cli/internal/tokenizer"
)

// Classifier runs the classify stage.
type Classifier struct {
	Tokens   *tokenizer.Registry
	Encoding string
	Pool     *pool.Pool
	Store    store.ArtifactStore
	// Key optionally normalizes prompts before lookup. Nil means exact match.
	Key bucket.KeyFunc
}

// ClassifyResult is the committed output of a classify run.
type ClassifyResult struct {
	Manifest store.Manifest
	Buckets  []model.BucketArtifacts
}

type classified struct {
	bucket int
	row    model.TokenCountRow
}

// Run classifies every record of snap under mapping m and commits the
// per-bucket artifacts. Any record error aborts the run before the commit,
// leaving the previous artifacts untouched.
func (c *Classifier) Run(ctx context.Context, snap *Snapshot, m bucket.Mapping) (*ClassifyResult, error) {
	log := zap.L().With(zap.String("stage", "classify"), zap.String("encoding", c.Encoding))
	start := time.Now()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	assigner, err := bucket.NewAssigner(m, c.Key)
	if err != nil {
		return nil, err
	}
	counter, err := c.Tokens.Counter(c.Encoding)
	if err != nil {
		return nil, err
	}

	log.Info("pipeline: classifying records",
		zap.Int("records", snap.Len()),
		zap.Int("buckets", len(m)),
		zap.Int("workers", c.Pool.Workers()),
	)

	units, err := pool.Map(ctx, c.Pool, "classify", snap.records, func(_ context.Context, i int, rec model.Record) (classified, error) {
		id, err := assigner.Assign(rec)
		if err != nil {
			return classified{}, err
		}
		row := model.NewTokenCountRow(i,
			counter.Count(rec.System),
			counter.Count(rec.Human),
			counter.Count(rec.Model),
		)
		return classified{bucket: id, row: row}, nil
	})
	if err != nil {
		return nil, err
	}

	ids := assigner.IDs()
	byID := make(map[int]*model.BucketArtifacts, len(ids))
	buckets := make([]model.BucketArtifacts, len(ids))
	for i, id := range ids {
		buckets[i] = model.BucketArtifacts{Bucket: id, Records: []model.Record{}, Counts: []model.TokenCountRow{}}
		byID[id] = &buckets[i]
	}
	// Units are indexed by ordinal, so each bucket comes out sorted by line.
	for i, u := range units {
		b := byID[u.bucket]
		b.Records = append(b.Records, snap.At(i))
		b.Counts = append(b.Counts, u.row)
	}

	manifest := store.Manifest{
		RunID:       uuid.NewString(),
		Fingerprint: snap.Fingerprint(),
		Records:     snap.Len(),
		Encoding:    c.Encoding,
		Buckets:     ids,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.Store.CommitClassified(ctx, manifest, buckets); err != nil {
		return nil, eris.Wrap(err, "pipeline: commit classified artifacts")
	}

	for _, b := range buckets {
		log.Debug("pipeline: bucket classified", zap.Int("bucket", b.Bucket), zap.Int("rows", len(b.Counts)))
	}
	log.Info("pipeline: classify complete",
		zap.String("run_id", manifest.RunID),
		zap.Int("records", snap.Len()),
		zap.Int("buckets", len(buckets)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &ClassifyResult{Manifest: manifest, Buckets: buckets}, nil
}

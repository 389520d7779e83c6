package store

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/curate-cli/internal/model"
)

type memGroup struct {
	records []json.RawMessage
	counts  []model.TokenCountRow
}

// MemoryStore keeps artifacts in process memory. It is used by tests and by
// callers that consume results directly.
type MemoryStore struct {
	mu       sync.RWMutex
	manifest *Manifest
	groups   map[model.Group]memGroup
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{groups: make(map[model.Group]memGroup)}
}

func (s *MemoryStore) CommitClassified(_ context.Context, m Manifest, buckets []model.BucketArtifacts) error {
	groups := make(map[model.Group]memGroup, len(buckets))
	for _, b := range buckets {
		p, err := payloads(b.Records)
		if err != nil {
			return err
		}
		groups[model.Group{Bucket: b.Bucket}] = memGroup{records: p, counts: slices.Clone(b.Counts)}
	}
	m.Buckets = sortedBuckets(m.Buckets)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifest = &m
	s.groups = groups
	return nil
}

func (s *MemoryStore) CommitSelected(_ context.Context, percentile float64, results []model.PercentileResult) error {
	if err := validateSelected(percentile, results); err != nil {
		return err
	}
	fresh := make(map[model.Group]memGroup, len(results))
	for _, r := range results {
		p, err := payloads(r.Records)
		if err != nil {
			return err
		}
		fresh[model.Group{Bucket: r.Bucket, Percentile: percentile}] = memGroup{records: p, counts: slices.Clone(r.Counts)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manifest == nil {
		return eris.Wrap(ErrNotFound, "memory: commit selected without classified artifacts")
	}
	for g := range s.groups {
		if g.Percentile == percentile {
			delete(s.groups, g)
		}
	}
	for g, v := range fresh {
		s.groups[g] = v
	}
	return nil
}

func (s *MemoryStore) Manifest(_ context.Context) (*Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.manifest == nil {
		return nil, ErrNotFound
	}
	m := *s.manifest
	m.Buckets = slices.Clone(m.Buckets)
	return &m, nil
}

func (s *MemoryStore) Counts(_ context.Context, g model.Group) ([]model.TokenCountRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.groups[g]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v.counts), nil
}

func (s *MemoryStore) Records(_ context.Context, g model.Group) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.groups[g]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v.records), nil
}

func (s *MemoryStore) Close() error {
	return nil
}

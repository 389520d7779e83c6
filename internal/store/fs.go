package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/curate-cli/internal/model"
)

// File names inside an artifact group directory.
const (
	RecordsFile  = "records.jsonl"
	CountsFile   = "token_counts.csv"
	ManifestFile = "manifest.json"
)

// FSStore lays artifacts out under <root>/classified:
//
//	classified/manifest.json
//	classified/<bucket>/records.jsonl
//	classified/<bucket>/token_counts.csv
//	classified/<bucket>/top_<p>/records.jsonl
//	classified/<bucket>/top_<p>/token_counts.csv
//
// Commits are written to a staging directory under root and renamed into
// place once every file is on disk.
type FSStore struct {
	root string
}

// NewFS returns a store rooted at dir, creating it if needed.
func NewFS(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "fs: create root %s", dir)
	}
	return &FSStore{root: dir}, nil
}

// Root returns the directory the store writes under.
func (s *FSStore) Root() string {
	return s.root
}

// GroupDir returns the directory holding a group's files.
func (s *FSStore) GroupDir(g model.Group) string {
	return filepath.Join(s.root, filepath.FromSlash(g.Path()))
}

func (s *FSStore) classifiedDir() string {
	return filepath.Join(s.root, model.ClassifiedRoot)
}

func (s *FSStore) CommitClassified(_ context.Context, m Manifest, buckets []model.BucketArtifacts) error {
	staging, err := os.MkdirTemp(s.root, ".staging-")
	if err != nil {
		return eris.Wrap(err, "fs: create staging dir")
	}
	defer os.RemoveAll(staging) //nolint:errcheck

	next := filepath.Join(staging, model.ClassifiedRoot)
	for _, b := range buckets {
		p, err := payloads(b.Records)
		if err != nil {
			return err
		}
		if err := writeGroup(filepath.Join(next, strconv.Itoa(b.Bucket)), p, b.Counts); err != nil {
			return eris.Wrapf(err, "fs: stage bucket %d", b.Bucket)
		}
	}

	m.Buckets = sortedBuckets(m.Buckets)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return eris.Wrap(err, "fs: marshal manifest")
	}
	if err := os.MkdirAll(next, 0o755); err != nil {
		return eris.Wrap(err, "fs: create staged classified dir")
	}
	if err := os.WriteFile(filepath.Join(next, ManifestFile), data, 0o644); err != nil {
		return eris.Wrap(err, "fs: write manifest")
	}

	// Swap: move the old tree aside, move the new tree in, drop the old one
	// with the staging dir.
	current := s.classifiedDir()
	if _, err := os.Stat(current); err == nil {
		if err := os.Rename(current, filepath.Join(staging, "previous")); err != nil {
			return eris.Wrap(err, "fs: move previous artifacts aside")
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrap(err, "fs: stat classified dir")
	}
	if err := os.Rename(next, current); err != nil {
		return eris.Wrap(err, "fs: install classified artifacts")
	}
	return nil
}

func (s *FSStore) CommitSelected(ctx context.Context, percentile float64, results []model.PercentileResult) error {
	if err := validateSelected(percentile, results); err != nil {
		return err
	}
	if _, err := s.Manifest(ctx); err != nil {
		return eris.Wrap(err, "fs: commit selected without classified artifacts")
	}

	staging, err := os.MkdirTemp(s.root, ".staging-")
	if err != nil {
		return eris.Wrap(err, "fs: create staging dir")
	}
	defer os.RemoveAll(staging) //nolint:errcheck

	top := model.TopDir(percentile)
	for _, r := range results {
		p, err := payloads(r.Records)
		if err != nil {
			return err
		}
		if err := writeGroup(filepath.Join(staging, "next", strconv.Itoa(r.Bucket)), p, r.Counts); err != nil {
			return eris.Wrapf(err, "fs: stage bucket %d %s", r.Bucket, top)
		}
	}

	stale, err := filepath.Glob(filepath.Join(s.classifiedDir(), "*", top))
	if err != nil {
		return eris.Wrap(err, "fs: find previous selection")
	}
	trash := filepath.Join(staging, "previous")
	if err := os.MkdirAll(trash, 0o755); err != nil {
		return eris.Wrap(err, "fs: create trash dir")
	}
	for i, dir := range stale {
		if err := os.Rename(dir, filepath.Join(trash, strconv.Itoa(i))); err != nil {
			return eris.Wrapf(err, "fs: move aside %s", dir)
		}
	}

	for _, r := range results {
		dst := s.GroupDir(model.Group{Bucket: r.Bucket, Percentile: percentile})
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return eris.Wrapf(err, "fs: create bucket dir %d", r.Bucket)
		}
		if err := os.Rename(filepath.Join(staging, "next", strconv.Itoa(r.Bucket)), dst); err != nil {
			return eris.Wrapf(err, "fs: install %s", dst)
		}
	}
	return nil
}

func (s *FSStore) Manifest(_ context.Context) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.classifiedDir(), ManifestFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "fs: read manifest")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "fs: parse manifest")
	}
	return &m, nil
}

func (s *FSStore) Counts(_ context.Context, g model.Group) ([]model.TokenCountRow, error) {
	data, err := os.ReadFile(filepath.Join(s.GroupDir(g), CountsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fs: read counts %s", g)
	}
	return DecodeCounts(bytes.NewReader(data))
}

func (s *FSStore) Records(_ context.Context, g model.Group) ([]json.RawMessage, error) {
	f, err := os.Open(filepath.Join(s.GroupDir(g), RecordsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fs: open records %s", g)
	}
	defer f.Close() //nolint:errcheck
	return DecodeRecords(f)
}

func (s *FSStore) Close() error {
	return nil
}

func writeGroup(dir string, records []json.RawMessage, counts []model.TokenCountRow) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrap(err, "fs: create group dir")
	}

	var rec bytes.Buffer
	if err := EncodeRecords(&rec, records); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, RecordsFile), rec.Bytes(), 0o644); err != nil {
		return eris.Wrap(err, "fs: write records")
	}

	var cnt bytes.Buffer
	if err := EncodeCounts(&cnt, counts); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, CountsFile), cnt.Bytes(), 0o644); err != nil {
		return eris.Wrap(err, "fs: write counts")
	}
	return nil
}

package pipeline

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/curate-cli/internal/model"
)

// Snapshot is an immutable, fingerprinted view of an ingested record
// sequence. The classifier records the fingerprint in the manifest and the
// selector refuses to join count rows against a snapshot that differs.
type Snapshot struct {
	records     []model.Record
	fingerprint string
}

// NewSnapshot copies records and fingerprints them. Every record must sit
// at the position named by its Line.
func NewSnapshot(records []model.Record) (*Snapshot, error) {
	h := sha256.New()
	var hdr [16]byte
	for i, rec := range records {
		if rec.Line != i {
			return nil, eris.Errorf("pipeline: record at position %d has line %d", i, rec.Line)
		}
		p, err := rec.Payload()
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: serialize record %d", i)
		}
		binary.BigEndian.PutUint64(hdr[:8], uint64(i))
		binary.BigEndian.PutUint64(hdr[8:], uint64(len(p)))
		h.Write(hdr[:])
		h.Write(p)
	}
	return &Snapshot{
		records:     slices.Clone(records),
		fingerprint: hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	return len(s.records)
}

// At returns the record at ordinal i.
func (s *Snapshot) At(i int) model.Record {
	return s.records[i]
}

// Records returns a copy of the records.
func (s *Snapshot) Records() []model.Record {
	return slices.Clone(s.records)
}

// Fingerprint returns the hex SHA-256 of the sequence.
func (s *Snapshot) Fingerprint() string {
	return s.fingerprint
}

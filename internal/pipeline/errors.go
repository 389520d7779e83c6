package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/sells-group/curate-cli/internal/bucket"
	"github.com/sells-group/curate-cli/internal/ingest"
	"github.com/sells-group/curate-cli/internal/tokenizer"
)

// SequenceMismatchError reports that the records handed to the selector are
// not the records the count tables were built from.
type SequenceMismatchError struct {
	ExpectedRecords     int
	GotRecords          int
	ExpectedFingerprint string
	GotFingerprint      string
	// Line is set when a count row points outside the snapshot.
	Line int
}

func (e *SequenceMismatchError) Error() string {
	if e.ExpectedRecords != e.GotRecords {
		return fmt.Sprintf("pipeline: sequence mismatch: classified %d records, got %d", e.ExpectedRecords, e.GotRecords)
	}
	if e.ExpectedFingerprint != e.GotFingerprint {
		return fmt.Sprintf("pipeline: sequence mismatch: fingerprint %s, got %s", short(e.ExpectedFingerprint), short(e.GotFingerprint))
	}
	return fmt.Sprintf("pipeline: sequence mismatch: count row references line %d of %d", e.Line, e.GotRecords)
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

// Error kinds reported by Kind.
const (
	KindMalformedRecord     = "malformed_record"
	KindUnknownPrompt       = "unknown_prompt"
	KindUnsupportedEncoding = "unsupported_encoding"
	KindSequenceMismatch    = "sequence_mismatch"
	KindCanceled            = "canceled"
	KindInternal            = "internal"
)

// Kind maps err to a stable kind string for logs and exit reporting.
func Kind(err error) string {
	var (
		malformed *ingest.MalformedRecordError
		unknown   *bucket.UnknownPromptError
		mismatch  *SequenceMismatchError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &malformed):
		return KindMalformedRecord
	case errors.As(err, &unknown):
		return KindUnknownPrompt
	case errors.Is(err, tokenizer.ErrUnsupportedEncoding):
		return KindUnsupportedEncoding
	case errors.As(err, &mismatch):
		return KindSequenceMismatch
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

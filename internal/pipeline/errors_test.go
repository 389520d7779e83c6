package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/curate-cli/internal/bucket"
	"github.com/sells-group/curate-cli/internal/ingest"
	"github.com/sells-group/curate-cli/internal/tokenizer"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ingest.MalformedRecordError{Line: 3, Reason: "missing conversations"}, KindMalformedRecord},
		{&bucket.UnknownPromptError{Line: 1, Prompt: "C"}, KindUnknownPrompt},
		{&tokenizer.UnsupportedEncodingError{Encoding: "x"}, KindUnsupportedEncoding},
		{&SequenceMismatchError{ExpectedRecords: 2, GotRecords: 1}, KindSequenceMismatch},
		{context.Canceled, KindCanceled},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err))
	}
}

func TestKind_WrappedSentinel(t *testing.T) {
	assert.Equal(t, KindCanceled, Kind(eris.Wrap(context.Canceled, "pipeline: load manifest")))
}

func TestSequenceMismatchError_Messages(t *testing.T) {
	assert.Contains(t, (&SequenceMismatchError{ExpectedRecords: 3, GotRecords: 2}).Error(), "classified 3 records, got 2")
	assert.Contains(t, (&SequenceMismatchError{
		ExpectedRecords: 2, GotRecords: 2,
		ExpectedFingerprint: "aaaaaaaaaaaaaaaa", GotFingerprint: "bbbbbbbbbbbbbbbb",
	}).Error(), "fingerprint aaaaaaaaaaaa, got bbbbbbbbbbbb")
	assert.Contains(t, (&SequenceMismatchError{ExpectedRecords: 1, GotRecords: 1, Line: 9}).Error(), "line 9 of 1")
}

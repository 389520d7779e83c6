package store

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/curate-cli/internal/model"
)

func TestEncodeCounts_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCounts(&buf, nil))
	assert.Equal(t, "line_num,system,human,gpt,total_token_count\n", buf.String())
}

func TestEncodeCounts_RoundTrip(t *testing.T) {
	rows := []model.TokenCountRow{
		model.NewTokenCountRow(0, 1, 1, 2),
		model.NewTokenCountRow(5, 10, 20, 30),
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeCounts(&buf, rows))
	assert.Equal(t, "line_num,system,human,gpt,total_token_count\n0,1,1,2,4\n5,10,20,30,60\n", buf.String())

	got, err := DecodeCounts(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestDecodeCounts_RejectsForeignHeader(t *testing.T) {
	_, err := DecodeCounts(strings.NewReader("line,a,b,c,total\n0,1,1,1,3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected count header")

	_, err = DecodeCounts(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no header")
}

func TestEncodeRecords_CompactsMultiline(t *testing.T) {
	payloads := []json.RawMessage{
		json.RawMessage(`{"a":1}`),
		json.RawMessage("{\n  \"b\": 2\n}"),
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeRecords(&buf, payloads))
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", buf.String())

	got, err := DecodeRecords(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"b":2}`, string(got[1]))
}

func TestFSStore_Layout(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFS(dir)
	require.NoError(t, err)
	ctx := t.Context()

	require.NoError(t, st.CommitClassified(ctx, testManifest(1, 2, 3), classifiedFixture()))
	require.NoError(t, st.CommitSelected(ctx, 12.5, []model.PercentileResult{{
		Bucket: 2, Percentile: 12.5, Threshold: 5,
		Records: []model.Record{rec(1, "B", "q", "a b c")},
		Counts:  []model.TokenCountRow{model.NewTokenCountRow(1, 1, 1, 3)},
	}}))

	for _, p := range []string{
		"classified/manifest.json",
		"classified/1/records.jsonl",
		"classified/1/token_counts.csv",
		"classified/3/token_counts.csv",
		"classified/2/top_12.5/records.jsonl",
		"classified/2/top_12.5/token_counts.csv",
	} {
		assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(p)))
	}

	data, err := os.ReadFile(filepath.Join(dir, "classified", "3", CountsFile))
	require.NoError(t, err)
	assert.Equal(t, "line_num,system,human,gpt,total_token_count\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".staging-"), "staging dir left behind: %s", e.Name())
	}
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/curate-cli/internal/pipeline"
)

const sampleJSONL = `{"conversations":[{"from":"system","value":"A"},{"from":"human","value":"h1"},{"from":"gpt","value":"m1"}]}
{"conversations":[{"from":"system","value":"A"},{"from":"human","value":"h2 longer"},{"from":"gpt","value":"m2 much longer reply"}]}

{"conversations":[{"from":"system","value":"B"},{"from":"human","value":"h3"},{"from":"gpt","value":"m3"}]}
`

// setupCLI isolates a command run: an empty working directory, quiet logs
// and the whitespace encoding.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	t.Setenv("CURATE_LOG_LEVEL", "error")
	t.Setenv("CURATE_TOKENIZER_ENCODING", "whitespace")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "in.jsonl"), []byte(sampleJSONL), 0o644))
	return dir
}

func execute(args ...string) error {
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestCommands_ClassifyThenSelect(t *testing.T) {
	dir := setupCLI(t)
	out := filepath.Join(dir, "out")

	require.NoError(t, execute("classify", "--input", "in.jsonl", "--out", out, "--driver", "fs"))
	for _, p := range []string{"classified/1/records.jsonl", "classified/1/token_counts.csv", "classified/2/token_counts.csv"} {
		assert.FileExists(t, filepath.Join(out, filepath.FromSlash(p)))
	}

	require.NoError(t, execute("select", "--input", "in.jsonl", "--out", out, "--driver", "fs", "--percentile", "50"))
	data, err := os.ReadFile(filepath.Join(out, "classified", "1", "top_50", "token_counts.csv"))
	require.NoError(t, err)
	assert.Equal(t, "line_num,system,human,gpt,total_token_count\n1,1,2,4,7\n", string(data))
}

func TestCommands_SelectRejectsDifferentInput(t *testing.T) {
	dir := setupCLI(t)
	out := filepath.Join(dir, "out")
	require.NoError(t, execute("classify", "--input", "in.jsonl", "--out", out, "--driver", "fs"))

	other := filepath.Join(dir, "other.jsonl")
	require.NoError(t, os.WriteFile(other, []byte(sampleJSONL+sampleJSONL), 0o644))

	err := execute("select", "--input", other, "--out", out, "--driver", "fs", "--percentile", "50")
	require.Error(t, err)
	assert.Equal(t, pipeline.KindSequenceMismatch, pipeline.Kind(err))
}

func TestCommands_RunWithPromptFile(t *testing.T) {
	dir := setupCLI(t)
	out := filepath.Join(dir, "out")
	mapping := filepath.Join(dir, "prompts.yaml")

	require.NoError(t, execute("prompts", "--input", "in.jsonl", "--write", mapping))
	assert.FileExists(t, mapping)

	require.NoError(t, execute("run", "--input", "in.jsonl", "--prompts", mapping, "--out", out, "--driver", "fs", "--percentile", "100"))
	assert.FileExists(t, filepath.Join(out, "classified", "2", "top_100", "records.jsonl"))
}

func TestCommands_UnknownPrompt(t *testing.T) {
	dir := setupCLI(t)
	mapping := filepath.Join(dir, "prompts.yaml")
	require.NoError(t, os.WriteFile(mapping, []byte("buckets:\n  - id: 1\n    prompt: A\n"), 0o644))

	err := execute("classify", "--input", "in.jsonl", "--prompts", mapping, "--out", filepath.Join(dir, "out"), "--driver", "fs")
	require.Error(t, err)
	assert.Equal(t, pipeline.KindUnknownPrompt, pipeline.Kind(err))
	assert.NoDirExists(t, filepath.Join(dir, "out", "classified"))
}

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/curate-cli/internal/model"
	"github.com/sells-group/curate-cli/internal/pool"
	"github.com/sells-group/curate-cli/internal/store"
	"github.com/sells-group/curate-cli/internal/tokenizer"
)

func records(turns ...[3]string) []model.Record {
	out := make([]model.Record, len(turns))
	for i, t := range turns {
		out[i] = model.Record{Line: i, System: t[0], Human: t[1], Model: t[2]}
	}
	return out
}

func snapshot(t *testing.T, recs []model.Record) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot(recs)
	require.NoError(t, err)
	return snap
}

func newStages(st store.ArtifactStore) (*Classifier, *Selector) {
	p := pool.New(pool.Config{Workers: 4})
	c := &Classifier{
		Tokens:   tokenizer.Default(),
		Encoding: tokenizer.Whitespace,
		Pool:     p,
		Store:    st,
	}
	return c, &Selector{Pool: p, Store: st}
}

func lines(rows []model.TokenCountRow) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.LineNum
	}
	return out
}

// mixedRecords has three prompts with uneven token totals, including ties.
func mixedRecords() []model.Record {
	return records(
		[3]string{"A", "one", "a b"},
		[3]string{"B", "x y z", "w"},
		[3]string{"A", "one two three", "a b c d"},
		[3]string{"C", "q", "r"},
		[3]string{"A", "one", "a b"},
		[3]string{"B", "x", "w"},
		[3]string{"A", "one two", "a b c d e f"},
		[3]string{"B", "x y z w v u", "t s"},
		[3]string{"A", "", ""},
		[3]string{"C", "q r s", "t"},
	)
}

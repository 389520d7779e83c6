package bucket

import (
	"sort"

	"github.com/sells-group/curate-cli/internal/model"
)

// previewRunes is the prompt preview length shown in summaries.
const previewRunes = 128

// Summary describes one bucket of an input.
type Summary struct {
	ID      int    `json:"id" yaml:"id"`
	Prompt  string `json:"prompt" yaml:"prompt"`
	Preview string `json:"preview" yaml:"preview"`
	Count   int    `json:"count" yaml:"count"`
}

// Summarize counts records per bucket. Records whose key is not in m are
// ignored; run an Assigner to surface them as errors.
func Summarize(records []model.Record, m Mapping, key KeyFunc) []Summary {
	if key == nil {
		key = Exact
	}
	byID := make(map[int]*Summary, len(m))
	for _, rec := range records {
		id, ok := m[key(rec.System)]
		if !ok {
			continue
		}
		s, ok := byID[id]
		if !ok {
			s = &Summary{ID: id, Prompt: rec.System, Preview: Preview(rec.System, previewRunes)}
			byID[id] = s
		}
		s.Count++
	}

	out := make([]Summary, 0, len(byID))
	for _, s := range byID {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

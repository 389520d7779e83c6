// Package bucket groups records by the exact text of their system turn.
package bucket

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/curate-cli/internal/model"
)

// UnknownPromptError reports a record whose system turn has no bucket.
type UnknownPromptError struct {
	Line   int
	Prompt string
}

func (e *UnknownPromptError) Error() string {
	return fmt.Sprintf("bucket: unknown prompt for record %d: %q", e.Line, Preview(e.Prompt, 80))
}

// KeyFunc derives the lookup key from a system prompt.
type KeyFunc func(prompt string) string

// Exact is the default KeyFunc: the prompt text itself.
func Exact(prompt string) string {
	return prompt
}

// Mapping maps prompt keys to bucket ids.
type Mapping map[string]int

// IDs returns the bucket ids in ascending order.
func (m Mapping) IDs() []int {
	ids := make([]int, 0, len(m))
	for _, id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Validate checks that ids are positive, unique and dense over 1..len(m).
func (m Mapping) Validate() error {
	seen := make(map[int]string, len(m))
	for prompt, id := range m {
		if id < 1 || id > len(m) {
			return eris.Errorf("bucket: id %d out of range 1..%d", id, len(m))
		}
		if other, dup := seen[id]; dup {
			return eris.Errorf("bucket: id %d assigned to %q and %q", id, Preview(other, 40), Preview(prompt, 40))
		}
		seen[id] = prompt
	}
	return nil
}

// Rekey returns a copy of m with key applied to every prompt. Prompts that
// collapse to the same key must agree on the id.
func (m Mapping) Rekey(key KeyFunc) (Mapping, error) {
	if key == nil {
		return m, nil
	}
	out := make(Mapping, len(m))
	for prompt, id := range m {
		k := key(prompt)
		if prev, ok := out[k]; ok && prev != id {
			return nil, eris.Errorf("bucket: prompts for ids %d and %d normalize to the same key", prev, id)
		}
		out[k] = id
	}
	return out, nil
}

// Discover assigns ids to the distinct prompt keys in order of first
// encounter, starting at 1.
func Discover(records []model.Record, key KeyFunc) Mapping {
	if key == nil {
		key = Exact
	}
	m := make(Mapping)
	for _, rec := range records {
		k := key(rec.System)
		if _, ok := m[k]; !ok {
			m[k] = len(m) + 1
		}
	}
	return m
}

// Assigner resolves the bucket of a record.
type Assigner struct {
	mapping Mapping
	key     KeyFunc
}

// NewAssigner returns an Assigner over m. With a nil key the lookup is an
// exact string match; otherwise both the mapping and lookups use key.
func NewAssigner(m Mapping, key KeyFunc) (*Assigner, error) {
	if key == nil {
		key = Exact
	} else {
		var err error
		if m, err = m.Rekey(key); err != nil {
			return nil, err
		}
	}
	return &Assigner{mapping: m, key: key}, nil
}

// Assign returns the bucket id of rec.
func (a *Assigner) Assign(rec model.Record) (int, error) {
	id, ok := a.mapping[a.key(rec.System)]
	if !ok {
		return 0, &UnknownPromptError{Line: rec.Line, Prompt: rec.System}
	}
	return id, nil
}

// IDs returns the bucket ids known to the assigner.
func (a *Assigner) IDs() []int {
	return a.mapping.IDs()
}

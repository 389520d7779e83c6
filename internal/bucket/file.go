package bucket

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// mappingEntry is the on-disk form of one mapping entry. A list keeps
// multi-line prompts readable and the ids ordered.
type mappingEntry struct {
	ID     int    `yaml:"id"`
	Prompt string `yaml:"prompt"`
}

type mappingFile struct {
	Buckets []mappingEntry `yaml:"buckets"`
}

// LoadMapping reads and validates a YAML mapping file.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "bucket: read mapping %s", path)
	}

	var f mappingFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "bucket: parse mapping %s", path)
	}

	m := make(Mapping, len(f.Buckets))
	for _, e := range f.Buckets {
		if _, dup := m[e.Prompt]; dup {
			return nil, eris.Errorf("bucket: prompt listed twice in %s (id %d)", path, e.ID)
		}
		m[e.Prompt] = e.ID
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// SaveMapping writes m as YAML, ordered by id.
func SaveMapping(path string, m Mapping) error {
	f := mappingFile{Buckets: make([]mappingEntry, 0, len(m))}
	for prompt, id := range m {
		f.Buckets = append(f.Buckets, mappingEntry{ID: id, Prompt: prompt})
	}
	sort.Slice(f.Buckets, func(i, j int) bool { return f.Buckets[i].ID < f.Buckets[j].ID })

	data, err := yaml.Marshal(f)
	if err != nil {
		return eris.Wrap(err, "bucket: marshal mapping")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "bucket: write mapping %s", path)
	}
	return nil
}

// Package tokenizer maps text to token counts under a named encoding.
//
// Counters are deterministic and safe for concurrent use. A Registry resolves
// encoding names lazily and caches the resulting Counter, so BPE ranks are
// loaded at most once per process.
package tokenizer

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnsupportedEncoding is matched by every UnsupportedEncodingError.
var ErrUnsupportedEncoding = errors.New("tokenizer: unsupported encoding")

// UnsupportedEncodingError reports an encoding name that is not registered or
// failed to load.
type UnsupportedEncodingError struct {
	Encoding string
	Err      error
}

func (e *UnsupportedEncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tokenizer: unsupported encoding %q: %v", e.Encoding, e.Err)
	}
	return fmt.Sprintf("tokenizer: unsupported encoding %q", e.Encoding)
}

func (e *UnsupportedEncodingError) Is(target error) bool {
	return target == ErrUnsupportedEncoding
}

func (e *UnsupportedEncodingError) Unwrap() error {
	return e.Err
}

// Counter counts tokens in a string.
type Counter interface {
	Count(text string) int
}

// CounterFunc adapts a function to Counter.
type CounterFunc func(text string) int

// Count calls f(text).
func (f CounterFunc) Count(text string) int {
	return f(text)
}

// Factory builds the Counter for an encoding.
type Factory func() (Counter, error)

// Registry resolves encoding names to Counters.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	counters  map[string]Counter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		counters:  make(map[string]Counter),
	}
}

// Default returns a registry with the tiktoken encodings and the built-in
// estimators registered.
func Default() *Registry {
	r := NewRegistry()
	for _, name := range TiktokenEncodings {
		r.Register(name, TiktokenFactory(name))
	}
	r.Register(Whitespace, func() (Counter, error) { return CounterFunc(CountWords), nil })
	r.Register(Chars4, func() (Counter, error) { return CounterFunc(EstimateChars), nil })
	return r
}

// Register adds or replaces the factory for name. A cached counter for the
// same name is dropped.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	delete(r.counters, name)
}

// Encodings lists the registered encoding names in sorted order.
func (r *Registry) Encodings() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Counter returns the counter for name, building it on first use.
func (r *Registry) Counter(name string) (Counter, error) {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, &UnsupportedEncodingError{Encoding: name}
	}
	c, err := f()
	if err != nil {
		return nil, &UnsupportedEncodingError{Encoding: name, Err: err}
	}
	r.counters[name] = c
	return c, nil
}

// Count returns the number of tokens in text under encoding.
func (r *Registry) Count(text, encoding string) (int, error) {
	c, err := r.Counter(encoding)
	if err != nil {
		return 0, err
	}
	return c.Count(text), nil
}

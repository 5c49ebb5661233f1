// Package ignore holds the denylist of (source file, patent key) pairs that
// must never reach the output.
package ignore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Set maps a source file name to the patent keys suppressed in that file.
// The zero value and nil are both empty sets.
type Set struct {
	entries map[string]map[string]struct{}
}

// New returns an empty set.
func New() *Set {
	return &Set{entries: make(map[string]map[string]struct{})}
}

// Add suppresses keys for file.
func (s *Set) Add(file string, keys ...string) {
	if s.entries == nil {
		s.entries = make(map[string]map[string]struct{})
	}
	m, ok := s.entries[file]
	if !ok {
		m = make(map[string]struct{}, len(keys))
		s.entries[file] = m
	}
	for _, k := range keys {
		m[k] = struct{}{}
	}
}

// Contains reports whether key is suppressed for file. Keys compare
// verbatim.
func (s *Set) Contains(file, key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.entries[file][key]
	return ok
}

// Len returns the number of (file, key) pairs.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, m := range s.entries {
		n += len(m)
	}
	return n
}

// Files returns the file names with entries, sorted.
func (s *Set) Files() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.entries))
	for f := range s.entries {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Keys returns the suppressed keys of file, sorted.
func (s *Set) Keys(file string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.entries[file]))
	for k := range s.entries[file] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Merge returns a new set holding every pair of the given sets. Nil sets
// are skipped.
func Merge(sets ...*Set) *Set {
	out := New()
	for _, s := range sets {
		if s == nil {
			continue
		}
		for file, keys := range s.entries {
			for k := range keys {
				out.Add(file, k)
			}
		}
	}
	return out
}

// Load reads a YAML mapping of file name to a list of keys.
//
//	pftaps19871103_wk44.txt:
//	  - "047029323"
func Load(r io.Reader) (*Set, error) {
	var raw map[string][]string
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return New(), nil
		}
		return nil, fmt.Errorf("invalid ignore list: %w", err)
	}
	s := New()
	for file, keys := range raw {
		if file == "" {
			return nil, errors.New("invalid ignore list: empty file name")
		}
		s.Add(file, keys...)
	}
	return s, nil
}

// LoadFile reads an ignore list from path.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to open ignore list: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

package engine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// InputExt is the extension, compared case-insensitively, of APS files
// found in directories.
const InputExt = ".txt"

// DiscoveryOptions configures input discovery.
type DiscoveryOptions struct {
	// Recurse descends into subdirectories of directory inputs.
	Recurse bool
}

// Discover expands inputs into an ordered list of files. An input may be a
// file, a directory, or a glob pattern. Files named explicitly are kept
// whatever their extension; directories contribute their *.txt files in
// lexical order. Duplicates are dropped, keeping the first occurrence.
func Discover(inputs []string, opts DiscoveryOptions) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		key := filepath.Clean(path)
		if seen[key] {
			return
		}
		seen[key] = true
		files = append(files, path)
	}

	for _, input := range inputs {
		paths := []string{input}
		if isGlob(input) {
			matches, err := filepath.Glob(input)
			if err != nil {
				return nil, fmt.Errorf("invalid input pattern %q: %w", input, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no files match input pattern %q", input)
			}
			paths = matches
		}

		for _, path := range paths {
			info, err := os.Stat(path)
			if err != nil {
				return nil, fmt.Errorf("input not found: %w", err)
			}
			if !info.IsDir() {
				add(path)
				continue
			}
			found, err := scanDir(path, opts.Recurse)
			if err != nil {
				return nil, err
			}
			for _, f := range found {
				add(f)
			}
		}
	}
	return files, nil
}

func scanDir(dir string, recurse bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recurse {
				return filepath.SkipDir
			}
			return nil
		}
		if IsInputFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return files, nil
}

// IsInputFile reports whether name has the APS file extension.
func IsInputFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), InputExt)
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

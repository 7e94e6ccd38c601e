// Package source finds rule documents on disk and compiles them.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/chriserin/rulec/internal/parser"
)

// ErrNoDocuments is returned when no pattern matched a file.
var ErrNoDocuments = errors.New("no rule documents found")

// Paths expands patterns in order. Matches of one pattern are sorted; a path
// matched twice is kept at its first position. A pattern without glob
// characters must name an existing file.
func Paths(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 && !hasMeta(pattern) {
			return nil, fmt.Errorf("%s: %w", pattern, os.ErrNotExist)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if info, err := os.Stat(m); err != nil || info.IsDir() {
				continue
			}
			clean := filepath.Clean(m)
			if seen[clean] {
				continue
			}
			seen[clean] = true
			out = append(out, clean)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoDocuments
	}
	return out, nil
}

func hasMeta(pattern string) bool {
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', '\\':
			return true
		}
	}
	return false
}

// Load reads every document matched by patterns.
func Load(patterns []string) ([]parser.Source, error) {
	paths, err := Paths(patterns)
	if err != nil {
		return nil, err
	}
	sources := make([]parser.Source, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		sources = append(sources, parser.Source{Name: p, Content: content})
	}
	return sources, nil
}

// Compile parses sources concurrently and compiles them in input order, so
// duplicate resolution does not depend on scheduling.
func Compile(ctx context.Context, c *parser.Compiler, sources []parser.Source) (*parser.Result, error) {
	parsed := make([]parser.Parsed, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			parsed[i] = parser.ParseSource(src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return c.CompileParsed(parsed...)
}

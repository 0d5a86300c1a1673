// Package inventory supplies the list of files a watch set should watch.
//
// A Source returns a snapshot of absolute paths. How the list is maintained
// is up to the source: a fixed list, a file on disk, or several combined.
package inventory

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source supplies the current list of files to watch.
type Source interface {
	Paths(ctx context.Context) ([]string, error)
}

// Static is a fixed list of paths. Relative entries resolve against the
// working directory.
type Static []string

// Paths implements Source.
func (s Static) Paths(_ context.Context) ([]string, error) {
	out := make([]string, 0, len(s))
	for _, p := range s {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		out = append(out, abs)
	}
	return out, nil
}

// File reads the inventory from a file on every call.
//
// Files ending in .yaml or .yml hold a document of the form
//
//	files:
//	  - /srv/app/plugin.so
//	  - lib/helper.so
//
// Any other file is a plain list with one path per line; blank lines and
// lines starting with # are skipped. Relative entries resolve against the
// inventory file's directory.
type File struct {
	Path string
}

// document is the YAML inventory layout.
type document struct {
	Files []string `yaml:"files"`
}

// NewFile returns a File source for path.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve inventory path: %w", err)
	}
	return &File{Path: abs}, nil
}

// Paths implements Source.
func (f *File) Paths(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read inventory %s: %w", f.Path, err)
	}

	var entries []string
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".yaml", ".yml":
		var doc document
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse inventory %s: %w", f.Path, err)
		}
		entries = doc.Files
	default:
		entries, err = parseList(data)
		if err != nil {
			return nil, fmt.Errorf("parse inventory %s: %w", f.Path, err)
		}
	}

	base := filepath.Dir(f.Path)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !filepath.IsAbs(e) {
			e = filepath.Join(base, e)
		}
		out = append(out, e)
	}
	return out, nil
}

// parseList reads one entry per line, skipping blanks and # comments.
func parseList(data []byte) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Merge combines sources in order, keeping the first occurrence of each
// path.
func Merge(sources ...Source) Source {
	return merged(sources)
}

type merged []Source

// Paths implements Source.
func (m merged) Paths(ctx context.Context) ([]string, error) {
	var out []string
	seen := make(map[string]struct{})
	for _, src := range m {
		paths, err := src.Paths(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out, nil
}

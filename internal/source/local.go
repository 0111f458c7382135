package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// LocalSource enumerates log files under a fixed set of directories on this host.
type LocalSource struct {
	basePaths []string
	patterns  []string
	identity  string
	log       *slog.Logger
}

// NewLocalSource creates a local enumerator. identity tags every candidate.
func NewLocalSource(basePaths, patterns []string, identity string) *LocalSource {
	return &LocalSource{
		basePaths: basePaths,
		patterns:  patterns,
		identity:  identity,
		log:       slog.With("component", "source", "source", "local"),
	}
}

// Enumerate globs every base path. Missing or unreadable directories are
// logged and skipped; only regular files are returned, each at most once.
func (s *LocalSource) Enumerate(ctx context.Context) ([]Candidate, error) {
	seen := make(map[string]struct{})
	var out []Candidate

	for _, base := range s.basePaths {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		info, err := os.Stat(base)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.log.Warn("log location does not exist", "location", base)
			} else {
				s.log.Error("cannot access log location", "location", base, "error", err)
			}
			continue
		}
		if !info.IsDir() {
			s.log.Warn("log location is not a directory", "location", base)
			continue
		}

		found, err := s.globDir(base)
		if err != nil {
			s.log.Error("failed to list log location", "location", base, "error", err)
			continue
		}

		for _, path := range found {
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			out = append(out, Candidate{
				SourcePath:     path,
				SourceIdentity: s.identity,
				Filename:       filepath.Base(path),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SourcePath < out[j].SourcePath })
	s.log.Debug("enumerated local files", "files", len(out))
	return out, nil
}

// globDir returns the regular files in dir matching any pattern.
func (s *LocalSource) globDir(dir string) ([]string, error) {
	var files []string
	for _, pattern := range s.patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			files = append(files, m)
		}
	}
	return files, nil
}

var _ Enumerator = (*LocalSource)(nil)

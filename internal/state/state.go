// Package state persists which log files have already been archived.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ArchiveState is the run state carried between archive runs.
// The JSON field names match the state file written by earlier releases.
type ArchiveState struct {
	LastRun        *time.Time        `json:"last_run"`
	ProcessedFiles map[string]string `json:"processed_files"`
}

// New returns an empty state.
func New() *ArchiveState {
	return &ArchiveState{ProcessedFiles: make(map[string]string)}
}

// Changed reports whether fingerprint differs from the one recorded for path.
func (s *ArchiveState) Changed(path, fingerprint string) bool {
	last, ok := s.ProcessedFiles[path]
	return !ok || last != fingerprint
}

// Record stores the fingerprint for path.
func (s *ArchiveState) Record(path, fingerprint string) {
	if s.ProcessedFiles == nil {
		s.ProcessedFiles = make(map[string]string)
	}
	s.ProcessedFiles[path] = fingerprint
}

// Store loads and saves the archive state.
type Store interface {
	// Load reads the state. It never fails: unreadable state yields an empty one.
	Load(ctx context.Context) *ArchiveState

	// Save persists the state.
	Save(ctx context.Context, st *ArchiveState) error
}

// FileStore keeps the state in a single JSON file.
type FileStore struct {
	path string
	log  *slog.Logger
}

// NewFileStore creates a file-backed state store.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		log:  slog.With("component", "state", "state_file", path),
	}
}

// Path returns the state file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the state file.
func (s *FileStore) Load(ctx context.Context) *ArchiveState {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Debug("no previous state, starting fresh")
		} else {
			s.log.Warn("failed to read state, starting fresh", "error", err)
		}
		return New()
	}

	st := New()
	if err := json.Unmarshal(data, st); err != nil {
		s.log.Warn("malformed state, starting fresh", "error", err)
		return New()
	}
	if st.ProcessedFiles == nil {
		st.ProcessedFiles = make(map[string]string)
	}

	s.log.Debug("loaded state", "processed_files", len(st.ProcessedFiles))
	return st
}

// Save writes the state file atomically.
func (s *FileStore) Save(ctx context.Context, st *ArchiveState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write state temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

var _ Store = (*FileStore)(nil)

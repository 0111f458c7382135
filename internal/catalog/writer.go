// Package catalog records archived objects and batch runs in an optional
// PostgreSQL catalog.
package catalog

import (
	"context"
	"time"
)

type Config struct {
	PostgresDSN string
}

// Writer persists the outcome of a batch.
type Writer interface {
	RecordBatch(ctx context.Context, rec BatchRecord) error
	Close() error
}

// BatchRecord summarises one archive or collect run.
type BatchRecord struct {
	RunID      string
	Variant    string // "archive" | "collect"
	Identity   string // pod name or namespace
	StartedAt  time.Time
	FinishedAt time.Time
	Enumerated int
	Selected   int
	Succeeded  int
	Failed     int
	Skipped    int
	Objects    []ObjectRecord
}

// ObjectRecord is one file the batch attempted.
type ObjectRecord struct {
	SourcePath     string
	SourceIdentity string
	Namespace      string
	ObjectKey      string
	StorageURI     string
	PartitionDate  string
	Fingerprint    string
	Bytes          int64
	Attempts       int
	Outcome        string
	Error          string
}

// Discard is a Writer that records nothing.
var Discard Writer = noopWriter{}

// NewWriter returns a Postgres writer when a DSN is configured and Discard
// otherwise.
func NewWriter(ctx context.Context, cfg Config) (Writer, error) {
	if cfg.PostgresDSN == "" {
		return Discard, nil
	}
	return NewPostgresWriter(ctx, cfg)
}

type noopWriter struct{}

func (noopWriter) RecordBatch(_ context.Context, _ BatchRecord) error { return nil }
func (noopWriter) Close() error { return nil }

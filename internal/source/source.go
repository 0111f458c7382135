// Package source discovers log files eligible for archival.
package source

import (
	"context"
)

// Candidate is a log file discovered by an enumerator.
type Candidate struct {
	SourcePath     string // absolute path, on this host or inside the pod
	SourceIdentity string // pod name
	Filename       string // base name
	Namespace      string // remote only
}

// Enumerator lists candidate files.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]Candidate, error)
}

// Package transfer moves a single log file to the archive, retrying failed uploads.
package transfer

import (
	"context"
	"time"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/source"
)

// Outcome is the terminal state of a transfer.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result describes what happened to one candidate.
type Result struct {
	Candidate source.Candidate
	Outcome   Outcome
	Reason    string // set for skipped candidates
	Err       error  // set for failed candidates
	Attempts  int
	Key       string // object key, empty when nothing was uploaded
	Staged    string // local staging path, remote transfers only
	Bytes     int64
	Duration  time.Duration
}

// Engine transfers one candidate into the partition named by date.
type Engine interface {
	Transfer(ctx context.Context, c source.Candidate, date string) Result
}

// Skip reasons.
const (
	ReasonVanished   = "vanished"
	ReasonUnchanged  = "unchanged"
	ReasonUnreadable = "unreadable"
)

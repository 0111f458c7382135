package archiver

import (
	"time"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/catalog"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/source"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/transfer"
)

// Summary reports the counts of one batch.
type Summary struct {
	RunID      string
	Enumerated int
	Selected   int
	Succeeded  int
	Failed     int
	Skipped    int
	Duration   time.Duration
	Results    []transfer.Result
}

func (s *Summary) add(r transfer.Result) {
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case transfer.OutcomeSuccess:
		s.Succeeded++
	case transfer.OutcomeFailed:
		s.Failed++
	case transfer.OutcomeSkipped:
		s.Skipped++
	}
}

// job is a candidate selected for transfer.
type job struct {
	candidate   source.Candidate
	date        string
	fingerprint string
}

// objectRecords converts the attempted jobs for the catalog.
func objectRecords(jobs []job, results []transfer.Result, uri func(string) string) []catalog.ObjectRecord {
	recs := make([]catalog.ObjectRecord, 0, len(results))
	for i, r := range results {
		rec := catalog.ObjectRecord{
			SourcePath:     r.Candidate.SourcePath,
			SourceIdentity: r.Candidate.SourceIdentity,
			Namespace:      r.Candidate.Namespace,
			ObjectKey:      r.Key,
			PartitionDate:  jobs[i].date,
			Fingerprint:    jobs[i].fingerprint,
			Bytes:          r.Bytes,
			Attempts:       r.Attempts,
			Outcome:        r.Outcome.String(),
		}
		if r.Key != "" {
			rec.StorageURI = uri(r.Key)
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		recs = append(recs, rec)
	}
	return recs
}

// Package archiver coordinates archive and collect batches.
package archiver

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/catalog"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/config"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/logging"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/metrics"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/partition"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/source"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/state"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/transfer"
)

const variantArchive = "archive"

// Archiver runs local archive batches.
type Archiver struct {
	cfg    config.ArchiveConfig
	enum   source.Enumerator
	state  state.Store
	engine transfer.Engine
	opts   options
	log    *slog.Logger
}

// New creates an Archiver.
func New(cfg config.ArchiveConfig, enum source.Enumerator, st state.Store, engine transfer.Engine, opts ...Option) *Archiver {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.FingerprintPolicy == "" {
		cfg.FingerprintPolicy = config.PolicySelection
	}
	return &Archiver{
		cfg:    cfg,
		enum:   enum,
		state:  st,
		engine: engine,
		opts:   buildOptions(opts),
		log:    logging.Component("archiver"),
	}
}

// RunBatch archives every new or changed file once. Per-file failures are
// reported in the summary; the returned error is set only when ctx ends the
// batch early. The state is saved in either case.
func (a *Archiver) RunBatch(ctx context.Context) (Summary, error) {
	start := a.opts.now()

	runID := logging.RunID(ctx)
	if runID == "" {
		runID = logging.GenerateRunID()
		ctx = logging.WithRunID(ctx, runID)
	}
	log := logging.BatchLogger(runID, variantArchive).With("identity", a.cfg.Identity)
	labels := metrics.Labels{Variant: variantArchive}

	summary := Summary{RunID: runID}
	defaultDate := partition.DefaultDate(start)

	log.Info("starting archive batch",
		"base_paths", a.cfg.BasePaths,
		"workers", a.cfg.Workers,
		"fingerprint_policy", a.cfg.FingerprintPolicy,
		"default_date", defaultDate,
	)

	st := a.state.Load(ctx)

	candidates, err := a.enum.Enumerate(ctx)
	if err != nil {
		log.Error("enumeration interrupted", "error", err)
	}
	summary.Enumerated = len(candidates)
	if m := metrics.Get(); m != nil {
		m.AddFilesEnumerated(labels, float64(len(candidates)))
	}

	jobs := a.selectJobs(ctx, log, st, candidates, defaultDate, &summary)
	summary.Selected = len(jobs)

	results := a.transferAll(ctx, jobs)

	for i, r := range results {
		summary.add(r)
		if r.Outcome == transfer.OutcomeSuccess && a.cfg.FingerprintPolicy == config.PolicySuccess {
			st.Record(jobs[i].candidate.SourcePath, jobs[i].fingerprint)
		}
	}

	finished := a.opts.now()
	st.LastRun = &start
	if err := a.state.Save(ctx, st); err != nil {
		log.Error("failed to save state", "error", err)
	}

	a.record(ctx, log, summary, jobs, results, start, finished)

	summary.Duration = finished.Sub(start)
	if m := metrics.Get(); m != nil {
		m.ObserveBatchDuration(labels, summary.Duration.Seconds())
		m.SetLastBatchCompleted(labels, finished)
	}

	log.Info("archive batch complete",
		"enumerated", summary.Enumerated,
		"selected", summary.Selected,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"duration_ms", summary.Duration.Milliseconds(),
	)

	return summary, ctx.Err()
}

// selectJobs fingerprints candidates and keeps the new or changed ones. It
// runs on the coordinator goroutine, which is the only writer of st.
func (a *Archiver) selectJobs(ctx context.Context, log *slog.Logger, st *state.ArchiveState, candidates []source.Candidate, defaultDate string, summary *Summary) []job {
	var jobs []job
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}

		fp, err := a.opts.fingerprint(c.SourcePath)
		if err != nil {
			log.Warn("cannot fingerprint file, skipping", "path", c.SourcePath, "error", err)
			summary.Skipped++
			a.countSkip(transfer.ReasonUnreadable)
			continue
		}

		if !st.Changed(c.SourcePath, fp) {
			log.Debug("unchanged, skipping", "path", c.SourcePath)
			summary.Skipped++
			a.countSkip(transfer.ReasonUnchanged)
			continue
		}

		if a.cfg.FingerprintPolicy == config.PolicySelection {
			st.Record(c.SourcePath, fp)
		}

		jobs = append(jobs, job{
			candidate:   c,
			date:        partition.FromTokens(c.Filename, defaultDate),
			fingerprint: fp,
		})
	}
	return jobs
}

// transferAll runs jobs on a bounded worker pool and waits for all of them.
func (a *Archiver) transferAll(ctx context.Context, jobs []job) []transfer.Result {
	results := make([]transfer.Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(a.cfg.Workers)

	for i := range jobs {
		g.Go(func() error {
			if m := metrics.Get(); m != nil {
				m.IncInFlight()
				defer m.DecInFlight()
			}
			results[i] = a.engine.Transfer(ctx, jobs[i].candidate, jobs[i].date)
			return nil
		})
	}

	// Workers never return errors.
	_ = g.Wait()
	return results
}

func (a *Archiver) countSkip(reason string) {
	if m := metrics.Get(); m != nil {
		m.IncFilesSkipped(metrics.Labels{Variant: variantArchive, Reason: reason})
	}
}

func (a *Archiver) record(ctx context.Context, log *slog.Logger, summary Summary, jobs []job, results []transfer.Result, start, finished time.Time) {
	rec := catalog.BatchRecord{
		RunID:      summary.RunID,
		Variant:    variantArchive,
		Identity:   a.cfg.Identity,
		StartedAt:  start,
		FinishedAt: finished,
		Enumerated: summary.Enumerated,
		Selected:   summary.Selected,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
		Objects:    objectRecords(jobs, results, a.opts.uri),
	}
	if err := a.opts.catalog.RecordBatch(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("failed to record batch in catalog", "error", err)
		if m := metrics.Get(); m != nil {
			m.IncCatalogErrors(metrics.Labels{Variant: variantArchive})
		}
	}
}

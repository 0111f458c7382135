package archiver

import (
	"context"
	"log/slog"
	"time"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/catalog"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/config"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/logging"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/metrics"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/partition"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/source"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/transfer"
)

const variantCollect = "collect"

// PodSource is the remote enumerator as seen by the collector.
type PodSource interface {
	Namespace() string
	Pods(ctx context.Context) ([]string, error)
	LocationNames() []string
	Location(name string) (config.Location, bool)
	EnumeratePod(ctx context.Context, pod, name string, loc config.Location) ([]source.Candidate, error)
}

// Collector copies log files out of running pods, one file at a time.
type Collector struct {
	cfg    config.CollectConfig
	remote PodSource
	engine transfer.Engine
	opts   options
	log    *slog.Logger
}

// NewCollector creates a Collector.
func NewCollector(cfg config.CollectConfig, remote PodSource, engine transfer.Engine, opts ...Option) *Collector {
	return &Collector{
		cfg:    cfg,
		remote: remote,
		engine: engine,
		opts:   buildOptions(opts),
		log:    logging.Component("collector"),
	}
}

// Run walks every running pod and location. It pauses FilePacing after each
// file and LocationPacing after each location to limit load on the pods.
// Remote files are not fingerprinted; every matching file is copied.
func (c *Collector) Run(ctx context.Context) (Summary, error) {
	start := c.opts.now()

	runID := logging.RunID(ctx)
	if runID == "" {
		runID = logging.GenerateRunID()
		ctx = logging.WithRunID(ctx, runID)
	}
	log := logging.BatchLogger(runID, variantCollect).With("namespace", c.remote.Namespace())
	labels := metrics.Labels{Variant: variantCollect}
	summary := Summary{RunID: runID}

	pods, err := c.remote.Pods(ctx)
	if err != nil {
		log.Error("failed to list pods", "error", err)
		if m := metrics.Get(); m != nil {
			m.IncSourceErrors(metrics.Labels{Variant: variantCollect, SourceType: "pods"})
		}
		return summary, err
	}

	var jobs []job
	var results []transfer.Result

pods:
	for _, pod := range pods {
		log.Info("processing pod", "pod", pod)

		for _, name := range c.remote.LocationNames() {
			loc, _ := c.remote.Location(name)

			candidates, err := c.remote.EnumeratePod(ctx, pod, name, loc)
			if err != nil {
				log.Error("failed to list location", "pod", pod, "location", name, "error", err)
				if m := metrics.Get(); m != nil {
					m.IncSourceErrors(metrics.Labels{Variant: variantCollect, SourceType: "exec"})
				}
			}
			summary.Enumerated += len(candidates)
			summary.Selected += len(candidates)
			if m := metrics.Get(); m != nil {
				m.AddFilesEnumerated(labels, float64(len(candidates)))
			}

			for _, cand := range candidates {
				date := partition.FromPattern(cand.Filename, "")
				res := c.engine.Transfer(ctx, cand, date)
				summary.add(res)
				jobs = append(jobs, job{candidate: cand, date: date})
				results = append(results, res)

				if err := c.opts.sleep(ctx, c.cfg.FilePacing); err != nil {
					break pods
				}
			}

			if err := c.opts.sleep(ctx, c.cfg.LocationPacing); err != nil {
				break pods
			}
		}
	}

	finished := c.opts.now()
	summary.Duration = finished.Sub(start)
	c.record(ctx, log, summary, jobs, results, start, finished)

	if m := metrics.Get(); m != nil {
		m.ObserveBatchDuration(labels, summary.Duration.Seconds())
		m.SetLastBatchCompleted(labels, finished)
	}

	log.Info("collect batch complete",
		"pods", len(pods),
		"files", summary.Enumerated,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"duration_ms", summary.Duration.Milliseconds(),
	)

	return summary, ctx.Err()
}

func (c *Collector) record(ctx context.Context, log *slog.Logger, summary Summary, jobs []job, results []transfer.Result, start, finished time.Time) {
	rec := catalog.BatchRecord{
		RunID:      summary.RunID,
		Variant:    variantCollect,
		Identity:   c.remote.Namespace(),
		StartedAt:  start,
		FinishedAt: finished,
		Enumerated: summary.Enumerated,
		Selected:   summary.Selected,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		Skipped:    summary.Skipped,
		Objects:    objectRecords(jobs, results, c.opts.uri),
	}
	if err := c.opts.catalog.RecordBatch(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("failed to record batch in catalog", "error", err)
		if m := metrics.Get(); m != nil {
			m.IncCatalogErrors(metrics.Labels{Variant: variantCollect})
		}
	}
}

var _ PodSource = (*source.RemoteSource)(nil)

package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/kube"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/logging"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/metrics"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/source"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/storage"
)

// Remote copies files out of pods, stages them locally and optionally
// uploads the staged copy.
type Remote struct {
	client     kube.Client
	store      storage.ObjectStore // nil disables upload
	stagingDir string
	policy     RetryPolicy
	opts       options
	log        *slog.Logger
}

// NewRemote creates a remote engine. store may be nil.
func NewRemote(client kube.Client, store storage.ObjectStore, stagingDir string, policy RetryPolicy, opts ...Option) *Remote {
	return &Remote{
		client:     client,
		store:      store,
		stagingDir: stagingDir,
		policy:     policy,
		opts:       buildOptions(opts),
		log:        logging.Component("transfer"),
	}
}

// StagingPath returns where c is staged. The pod directory carries a -date
// suffix only when date is non-empty.
func (e *Remote) StagingPath(c source.Candidate, date string) string {
	podDir := c.SourceIdentity
	if date != "" {
		podDir += "-" + date
	}
	return filepath.Join(e.stagingDir, c.Namespace, podDir, c.Filename)
}

// Transfer fetches c with a single exec, stages it, then uploads it with retry.
// date is the date embedded in the filename, or empty.
func (e *Remote) Transfer(ctx context.Context, c source.Candidate, date string) Result {
	start := time.Now()
	log := logging.FileLogger(e.log, c.SourcePath, c.SourceIdentity).With("namespace", c.Namespace)
	if runID := logging.RunID(ctx); runID != "" {
		log = log.With("run_id", runID)
	}
	labels := metrics.Labels{Variant: "collect", Backend: e.opts.backend, SourceType: "exec", Operation: "upload"}

	res := Result{Candidate: c}

	data, err := e.client.Exec(ctx, c.Namespace, c.SourceIdentity, []string{"cat", c.SourcePath})
	if err != nil {
		log.Error("fetch failed", "error", err)
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("fetch %s from %s: %w", c.SourcePath, c.SourceIdentity, err)
		res.Attempts = 1
		res.Duration = time.Since(start)
		if m := metrics.Get(); m != nil {
			m.IncSourceErrors(labels)
			m.IncFilesFailed(labels)
		}
		return res
	}

	staged := e.StagingPath(c, date)
	if err := writeStaged(staged, data); err != nil {
		log.Error("staging failed", "staged", staged, "error", err)
		res.Outcome = OutcomeFailed
		res.Err = err
		res.Attempts = 1
		res.Duration = time.Since(start)
		if m := metrics.Get(); m != nil {
			m.IncFilesFailed(labels)
		}
		return res
	}
	res.Staged = staged
	res.Bytes = int64(len(data))
	log.Info("staged", "staged", staged, "bytes", len(data))

	if e.store == nil {
		res.Outcome = OutcomeSuccess
		res.Attempts = 1
		res.Duration = time.Since(start)
		return res
	}

	key := storage.CollectKey(c.Namespace, c.SourceIdentity, c.Filename)
	res.Key = key
	log = log.With("key", key)

	attempts, err := retry(ctx, e.policy, e.opts.sleep, log, labels, func(attempt int) error {
		return e.upload(ctx, staged, key)
	})
	res.Attempts = attempts
	res.Duration = time.Since(start)

	if err != nil {
		log.Error("upload failed", "attempts", attempts, "error", err)
		res.Outcome = OutcomeFailed
		res.Err = err
		if m := metrics.Get(); m != nil {
			m.IncFilesFailed(labels)
			m.IncStorageErrors(labels)
		}
		return res
	}

	res.Outcome = OutcomeSuccess
	log.Info("uploaded", "attempts", attempts, "bytes", res.Bytes, "duration_ms", res.Duration.Milliseconds())
	if m := metrics.Get(); m != nil {
		m.IncFilesUploaded(labels)
		m.AddBytesUploaded(labels, float64(res.Bytes))
		m.ObserveUploadDuration(labels, res.Duration.Seconds())
	}
	return res
}

func (e *Remote) upload(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open staged %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat staged %s: %w", path, err)
	}

	return e.store.Put(ctx, key, f, storage.PutOptions{
		Size:        info.Size(),
		ContentType: storage.ContentTypeFor(path),
	})
}

func writeStaged(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write staged %s: %w", path, err)
	}
	return nil
}

var _ Engine = (*Remote)(nil)

package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/logging"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/metrics"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/source"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/storage"
)

// Local uploads files from this host's filesystem.
type Local struct {
	store  storage.ObjectStore
	prefix string
	policy RetryPolicy
	opts   options
	log    *slog.Logger
}

// NewLocal creates an engine writing to {prefix}/{date}/{identity}/{filename}.
func NewLocal(store storage.ObjectStore, prefix string, policy RetryPolicy, opts ...Option) *Local {
	return &Local{
		store:  store,
		prefix: prefix,
		policy: policy,
		opts:   buildOptions(opts),
		log:    logging.Component("transfer"),
	}
}

// Transfer uploads c into the date partition.
func (e *Local) Transfer(ctx context.Context, c source.Candidate, date string) Result {
	start := time.Now()
	key := storage.ArchiveKey(e.prefix, date, c.SourceIdentity, c.Filename)
	log := logging.FileLogger(e.log, c.SourcePath, c.SourceIdentity).With("key", key)
	if runID := logging.RunID(ctx); runID != "" {
		log = log.With("run_id", runID)
	}
	labels := metrics.Labels{Variant: "archive", Backend: e.opts.backend, Operation: "upload"}

	res := Result{Candidate: c, Key: key}

	if _, err := os.Stat(c.SourcePath); errors.Is(err, fs.ErrNotExist) {
		log.Warn("file vanished before upload")
		res.Outcome = OutcomeSkipped
		res.Reason = ReasonVanished
		res.Key = ""
		if m := metrics.Get(); m != nil {
			m.IncFilesSkipped(metrics.Labels{Variant: "archive", Reason: ReasonVanished})
		}
		return res
	}

	var size int64
	attempts, err := retry(ctx, e.policy, e.opts.sleep, log, labels, func(attempt int) error {
		n, err := e.upload(ctx, c.SourcePath, key)
		size = n
		return err
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
	res.Bytes = size
	log.Info("uploaded", "attempts", attempts, "bytes", size, "duration_ms", res.Duration.Milliseconds())

	if m := metrics.Get(); m != nil {
		m.IncFilesUploaded(labels)
		m.AddBytesUploaded(labels, float64(size))
		m.ObserveUploadDuration(labels, res.Duration.Seconds())
	}
	return res
}

// upload streams the file at path to key. The file is reopened on every attempt.
func (e *Local) upload(ctx context.Context, path, key string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}

	opts := storage.PutOptions{
		Size:        info.Size(),
		ContentType: storage.ContentTypeFor(path),
	}
	if err := e.store.Put(ctx, key, f, opts); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

var _ Engine = (*Local)(nil)

package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/metrics"
)

// RetryPolicy bounds upload attempts. Attempt k (0-based) that fails before
// the last one waits BaseDelay * 2^k.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy is three attempts with 1s and 2s pauses.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}

// Backoff returns the pause after failed attempt k.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<attempt)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Option configures an engine.
type Option func(*options)

type options struct {
	sleep   SleepFunc
	backend string
}

// WithSleep replaces the backoff sleep.
func WithSleep(fn SleepFunc) Option {
	return func(o *options) { o.sleep = fn }
}

// WithBackend sets the backend label used in metrics.
func WithBackend(name string) Option {
	return func(o *options) { o.backend = name }
}

func buildOptions(opts []Option) options {
	o := options{sleep: Sleep, backend: "s3"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// retry runs op until it succeeds or the policy is exhausted. It returns the
// number of attempts made and the last error.
func retry(ctx context.Context, policy RetryPolicy, sleep SleepFunc, log *slog.Logger, labels metrics.Labels, op func(attempt int) error) (int, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = op(attempt); err == nil {
			return attempt + 1, nil
		}

		if attempt == maxAttempts-1 {
			break
		}

		backoff := policy.Backoff(attempt)
		log.Warn("upload failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)

		if m := metrics.Get(); m != nil {
			m.IncRetryAttempts(labels)
		}

		if serr := sleep(ctx, backoff); serr != nil {
			return attempt + 1, fmt.Errorf("retry interrupted after %d attempts: %w", attempt+1, err)
		}
	}

	return maxAttempts, fmt.Errorf("failed after %d attempts: %w", maxAttempts, err)
}

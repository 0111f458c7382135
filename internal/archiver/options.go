package archiver

import (
	"time"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/catalog"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/state"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/transfer"
)

// Option configures an Archiver or Collector.
type Option func(*options)

type options struct {
	now         func() time.Time
	sleep       transfer.SleepFunc
	fingerprint func(path string) (string, error)
	catalog     catalog.Writer
	uri         func(key string) string
}

// WithClock overrides the batch clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithSleep overrides the pacing sleep used by the collector.
func WithSleep(fn transfer.SleepFunc) Option {
	return func(o *options) { o.sleep = fn }
}

// WithFingerprint overrides the file fingerprint function.
func WithFingerprint(fn func(path string) (string, error)) Option {
	return func(o *options) { o.fingerprint = fn }
}

// WithCatalog records each batch in w.
func WithCatalog(w catalog.Writer) Option {
	return func(o *options) { o.catalog = w }
}

// WithStorageURI resolves object keys to URIs for the catalog.
func WithStorageURI(fn func(key string) string) Option {
	return func(o *options) { o.uri = fn }
}

func buildOptions(opts []Option) options {
	o := options{
		now:         time.Now,
		sleep:       transfer.Sleep,
		catalog:     catalog.Discard,
		fingerprint: state.Fingerprint,
		uri:         func(key string) string { return key },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// Multipart tuning shared by the object store backends.
const (
	PartSize       = 8 << 20 // 8 MiB
	MaxConcurrency = 10
)

// ErrBucketUnreachable is returned by CheckBucket when the target bucket does
// not exist or cannot be accessed with the configured credentials.
var ErrBucketUnreachable = errors.New("bucket unreachable")

// PutOptions describes an object being uploaded.
type PutOptions struct {
	Size        int64 // -1 when unknown
	ContentType string
}

// ObjectStore abstracts the archive destination.
type ObjectStore interface {
	// Put streams r to key. Existing objects are overwritten.
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) error

	// CheckBucket verifies that the destination is reachable.
	CheckBucket(ctx context.Context) error

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3 and MinIO: s3://bucket/path
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// Config configures the storage backend.
type Config struct {
	Backend string // "s3" | "gcs" | "minio" | "local"

	Bucket string

	// S3 (also works for B2, R2) and MinIO
	Endpoint string
	Region   string

	// MinIO
	AccessKey string
	SecretKey string
	UseSSL    bool

	// Local filesystem
	LocalDir string
}

// NewObjectStore creates a storage backend based on configuration.
func NewObjectStore(ctx context.Context, cfg Config) (ObjectStore, error) {
	switch cfg.Backend {
	case "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("LocalDir required for local backend")
		}
		return NewLocalStore(cfg.LocalDir)
	case "gcs":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket required for gcs backend")
		}
		return NewGCSStore(ctx, cfg.Bucket)
	case "s3", "":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("bucket required for s3 backend")
		}
		return NewS3Store(ctx, cfg.Bucket, cfg.Endpoint, cfg.Region)
	case "minio":
		if cfg.Bucket == "" || cfg.Endpoint == "" {
			return nil, fmt.Errorf("bucket and endpoint required for minio backend")
		}
		return NewMinIOStore(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// ContentTypeFor picks the content type recorded for an archived log file.
func ContentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".zip":
		return "application/zip"
	case ".gz":
		return "application/gzip"
	default:
		return "text/plain; charset=utf-8"
	}
}

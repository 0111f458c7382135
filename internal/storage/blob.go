package storage

import (
	"context"
	"fmt"
	"io"

	"gocloud.dev/blob"
)

// BlobStore writes objects through a gocloud.dev bucket.
type BlobStore struct {
	bucket *blob.Bucket
	scheme string
	name   string
}

func newBlobStore(bucket *blob.Bucket, scheme, name string) *BlobStore {
	return &BlobStore{bucket: bucket, scheme: scheme, name: name}
}

// Put uploads r to key using multipart writes for large files.
func (s *BlobStore) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) error {
	wopts := &blob.WriterOptions{
		ContentType:    opts.ContentType,
		BufferSize:     PartSize,
		MaxConcurrency: MaxConcurrency,
	}

	// Cancelling the writer context aborts the upload; Close alone would
	// commit a partial object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(wctx, key, wopts)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}

	if _, err := io.Copy(w, r); err != nil {
		cancel()
		w.Close()
		return fmt.Errorf("write data to %s: %w", key, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}

	return nil
}

// CheckBucket verifies the bucket can be reached.
func (s *BlobStore) CheckBucket(ctx context.Context) error {
	ok, err := s.bucket.IsAccessible(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBucketUnreachable, s.URI(""), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrBucketUnreachable, s.URI(""))
	}
	return nil
}

// URI returns the canonical URI for the given key.
func (s *BlobStore) URI(key string) string {
	return fmt.Sprintf("%s://%s/%s", s.scheme, s.name, key)
}

// Close releases the bucket connection.
func (s *BlobStore) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

var _ ObjectStore = (*BlobStore)(nil)

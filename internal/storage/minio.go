package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore writes objects to a MinIO server.
type MinIOStore struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOStore creates a MinIO client. It does not connect until first use.
func NewMinIOStore(cfg Config) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOStore{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Put uploads r to key. Sizes above PartSize go through multipart upload.
func (m *MinIOStore) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) error {
	size := opts.Size
	if size == 0 {
		size = -1
	}
	_, err := m.client.PutObject(ctx, m.bucketName, key, r, size, minio.PutObjectOptions{
		ContentType: opts.ContentType,
		PartSize:    PartSize,
		NumThreads:  MaxConcurrency,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to minio: %w", key, err)
	}
	return nil
}

// CheckBucket verifies the bucket exists. A missing bucket is reported, not created.
func (m *MinIOStore) CheckBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBucketUnreachable, m.bucketName, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s does not exist", ErrBucketUnreachable, m.bucketName)
	}
	return nil
}

// URI returns the canonical URI for the given key.
func (m *MinIOStore) URI(key string) string {
	return fmt.Sprintf("s3://%s/%s", m.bucketName, key)
}

// Close is a no-op; the minio client holds no long-lived connections.
func (m *MinIOStore) Close() error {
	return nil
}

var _ ObjectStore = (*MinIOStore)(nil)

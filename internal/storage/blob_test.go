package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"gocloud.dev/blob/memblob"
)

func TestBlobStorePut(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	store := newBlobStore(bucket, "s3", "fid-logs")
	defer store.Close()

	ctx := context.Background()
	key := ArchiveKey("logs", "2024-10-30", "pod-0", "alerts.log")

	if err := store.CheckBucket(ctx); err != nil {
		t.Fatalf("CheckBucket failed: %v", err)
	}

	body := strings.Repeat("alert line\n", 1000)
	opts := PutOptions{Size: int64(len(body)), ContentType: ContentTypeFor("alerts.log")}
	if err := store.Put(ctx, key, strings.NewReader(body), opts); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != body {
		t.Error("stored body mismatch")
	}
	if r.ContentType() != opts.ContentType {
		t.Errorf("ContentType = %q, want %q", r.ContentType(), opts.ContentType)
	}

	if got := store.URI(key); got != "s3://fid-logs/logs/2024-10-30/pod-0/alerts.log" {
		t.Errorf("URI() = %s", got)
	}
}

// failingReader returns its data and then err.
type failingReader struct {
	data string
	err  error
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, r.err
	}
	r.done = true
	return copy(p, r.data), nil
}

func TestBlobStorePutAbortsOnReadError(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	store := newBlobStore(bucket, "s3", "fid-logs")
	defer store.Close()

	ctx := context.Background()
	key := ArchiveKey("logs", "2024-10-30", "pod-0", "vds_server.log")
	readErr := errors.New("disk read failed")

	err := store.Put(ctx, key, &failingReader{data: "partial", err: readErr}, PutOptions{Size: -1, ContentType: ContentTypeFor(key)})
	if !errors.Is(err, readErr) {
		t.Fatalf("Put error = %v, want %v", err, readErr)
	}

	exists, err := bucket.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("failed Put left a partial object behind")
	}
}

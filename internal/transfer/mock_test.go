package transfer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/storage"
)

// mockStore fails the first failN puts, then stores bodies in memory.
type mockStore struct {
	mu      sync.Mutex
	failN   int
	puts    int
	objects map[string][]byte
	opts    map[string]storage.PutOptions
}

func newMockStore(failN int) *mockStore {
	return &mockStore{
		failN:   failN,
		objects: make(map[string][]byte),
		opts:    make(map[string]storage.PutOptions),
	}
}

var errInjected = errors.New("injected upload failure")

func (m *mockStore) Put(ctx context.Context, key string, r io.Reader, opts storage.PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.puts <= m.failN {
		return errInjected
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	m.opts[key] = opts
	return nil
}

func (m *mockStore) CheckBucket(ctx context.Context) error { return nil }
func (m *mockStore) URI(key string) string { return "mem://" + key }
func (m *mockStore) Close() error { return nil }

// recordSleep captures backoff durations without waiting.
type recordSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return ctx.Err()
}

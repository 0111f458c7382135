package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/source"
)

func newLocalCandidate(t *testing.T, name, content string) source.Candidate {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return source.Candidate{SourcePath: path, SourceIdentity: "pod-0", Filename: name}
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
	require.Equal(t, time.Second, p.Backoff(0))
	require.Equal(t, 2*time.Second, p.Backoff(1))
	require.Equal(t, 4*time.Second, p.Backoff(2))
}

func TestLocalTransferSuccess(t *testing.T) {
	store := newMockStore(0)
	sleeper := &recordSleep{}
	engine := NewLocal(store, "logs/", DefaultRetryPolicy, WithSleep(sleeper.sleep))

	c := newLocalCandidate(t, "vds_server.log", "hello")
	res := engine.Transfer(context.Background(), c, "2024-10-30")

	require.Equal(t, OutcomeSuccess, res.Outcome)
	require.Equal(t, 1, res.Attempts)
	require.Equal(t, "logs/2024-10-30/pod-0/vds_server.log", res.Key)
	require.Equal(t, int64(5), res.Bytes)
	require.Equal(t, []byte("hello"), store.objects[res.Key])
	require.Equal(t, int64(5), store.opts[res.Key].Size)
	require.Empty(t, sleeper.delays)
}

func TestLocalTransferRetryBackoffShape(t *testing.T) {
	store := newMockStore(2)
	sleeper := &recordSleep{}
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond}
	engine := NewLocal(store, "logs", policy, WithSleep(sleeper.sleep))

	c := newLocalCandidate(t, "alerts.log", "alert")
	res := engine.Transfer(context.Background(), c, "2024-10-30")

	require.Equal(t, OutcomeSuccess, res.Outcome)
	require.Equal(t, 3, res.Attempts)
	require.Equal(t, 3, store.puts)
	require.Equal(t, []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}, sleeper.delays)
}

func TestLocalTransferExhausted(t *testing.T) {
	store := newMockStore(10)
	sleeper := &recordSleep{}
	engine := NewLocal(store, "logs", DefaultRetryPolicy, WithSleep(sleeper.sleep))

	c := newLocalCandidate(t, "alerts.log", "alert")
	res := engine.Transfer(context.Background(), c, "2024-10-30")

	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Equal(t, 3, res.Attempts)
	require.True(t, errors.Is(res.Err, errInjected))
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays, "the final failure does not sleep")
	require.Empty(t, store.objects)
}

func TestLocalTransferVanished(t *testing.T) {
	store := newMockStore(0)
	engine := NewLocal(store, "logs", DefaultRetryPolicy)

	c := source.Candidate{
		SourcePath:     filepath.Join(t.TempDir(), "rotated.log"),
		SourceIdentity: "pod-0",
		Filename:       "rotated.log",
	}
	res := engine.Transfer(context.Background(), c, "2024-10-30")

	require.Equal(t, OutcomeSkipped, res.Outcome)
	require.Equal(t, ReasonVanished, res.Reason)
	require.Zero(t, store.puts)
}

func TestLocalTransferCancelledDuringBackoff(t *testing.T) {
	store := newMockStore(10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewLocal(store, "logs", DefaultRetryPolicy, WithSleep(Sleep))
	c := newLocalCandidate(t, "alerts.log", "alert")
	res := engine.Transfer(ctx, c, "2024-10-30")

	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Equal(t, 1, res.Attempts)
}

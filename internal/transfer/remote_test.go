package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/source"
)

// mockKube serves file contents keyed by pod and path.
type mockKube struct {
	files map[string]string // "pod:path" -> content
	execs int
}

func (m *mockKube) Ping(ctx context.Context) error { return nil }

func (m *mockKube) ListRunningPods(ctx context.Context, namespace, selector string) ([]string, error) {
	return nil, nil
}

func (m *mockKube) Exec(ctx context.Context, namespace, pod string, argv []string) ([]byte, error) {
	m.execs++
	content, ok := m.files[pod+":"+argv[len(argv)-1]]
	if !ok {
		return nil, errors.New("command terminated with exit code 1")
	}
	return []byte(content), nil
}

func remoteCandidate(name string) source.Candidate {
	return source.Candidate{
		SourcePath:     "/opt/radiantone/vds/logs/" + name,
		SourceIdentity: "fid-0",
		Filename:       name,
		Namespace:      "fid-prod",
	}
}

func TestRemoteTransferStagesWithoutStore(t *testing.T) {
	kc := &mockKube{files: map[string]string{"fid-0:/opt/radiantone/vds/logs/alerts.log": "alert body"}}
	staging := t.TempDir()
	engine := NewRemote(kc, nil, staging, DefaultRetryPolicy)

	res := engine.Transfer(context.Background(), remoteCandidate("alerts.log"), "")

	require.Equal(t, OutcomeSuccess, res.Outcome)
	require.Empty(t, res.Key)
	require.Equal(t, filepath.Join(staging, "fid-prod", "fid-0", "alerts.log"), res.Staged)
	data, err := os.ReadFile(res.Staged)
	require.NoError(t, err)
	require.Equal(t, "alert body", string(data))
}

func TestRemoteTransferDatedStagingAndUpload(t *testing.T) {
	name := "alerts-2024-10-30.log"
	kc := &mockKube{files: map[string]string{"fid-0:/opt/radiantone/vds/logs/" + name: "old alerts"}}
	store := newMockStore(1)
	sleeper := &recordSleep{}
	staging := t.TempDir()
	engine := NewRemote(kc, store, staging, DefaultRetryPolicy, WithSleep(sleeper.sleep), WithBackend("minio"))

	res := engine.Transfer(context.Background(), remoteCandidate(name), "2024-10-30")

	require.Equal(t, OutcomeSuccess, res.Outcome)
	require.Equal(t, filepath.Join(staging, "fid-prod", "fid-0-2024-10-30", name), res.Staged)
	require.Equal(t, "fid-prod/fid-0/"+name, res.Key)
	require.Equal(t, 2, res.Attempts)
	require.Equal(t, "old alerts", string(store.objects[res.Key]))
	require.Equal(t, 1, kc.execs, "fetch is not retried")
}

func TestRemoteTransferFetchFailure(t *testing.T) {
	kc := &mockKube{files: map[string]string{}}
	store := newMockStore(0)
	engine := NewRemote(kc, store, t.TempDir(), DefaultRetryPolicy)

	res := engine.Transfer(context.Background(), remoteCandidate("web.log"), "")

	require.Equal(t, OutcomeFailed, res.Outcome)
	require.Error(t, res.Err)
	require.Equal(t, 1, kc.execs)
	require.Zero(t, store.puts)
}

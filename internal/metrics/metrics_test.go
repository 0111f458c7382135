package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInitIsRepeatable(t *testing.T) {
	first := Init("")
	second := Init("")
	require.NotSame(t, first, second)
	require.Same(t, second, Get())
}

func TestCounters(t *testing.T) {
	m := Init("test")
	l := Labels{Variant: "archive", Backend: "s3", Operation: "upload"}

	m.IncFilesUploaded(l)
	m.IncFilesUploaded(l)
	m.AddBytesUploaded(l, 2048)
	m.IncRetryAttempts(l)
	m.IncFilesSkipped(Labels{Variant: "archive", Reason: "unchanged"})

	require.Equal(t, 2.0, testutil.ToFloat64(m.FilesUploaded.WithLabelValues("archive", "s3")))
	require.Equal(t, 2048.0, testutil.ToFloat64(m.BytesUploaded.WithLabelValues("archive", "s3")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RetryAttempts.WithLabelValues("archive", "upload")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.FilesSkipped.WithLabelValues("archive", "unchanged")))
}

func TestHandler(t *testing.T) {
	m := Init("test")
	m.IncFilesFailed(Labels{Variant: "collect", Backend: "minio"})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `test_files_failed_total{backend="minio",variant="collect"} 1`))

	health, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	require.Equal(t, 200, health.StatusCode)
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setArchiveEnv(t *testing.T) {
	t.Helper()
	clearEnv(t)
	t.Setenv("S3_BUCKET", "logs-bucket")
	t.Setenv("S3_PREFIX", "logs")
	t.Setenv("BASE_PATHS", "/var/log/app, /var/log/other")
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORAGE_BACKEND", "POD_NAME", "STATE_FILE", "FILE_PATTERNS", "ARCHIVE_WORKERS",
		"FINGERPRINT_POLICY", "RETRY_ATTEMPTS", "RETRY_BASE_DELAY", "FILE_PACING",
		"LOCATION_PACING", "WORKLOAD", "LOG_LOCATIONS_FILE", "MINIO_USE_SSL",
		"MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "S3_ENDPOINT", "STORAGE_LOCAL_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setArchiveEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "s3", cfg.Storage.Backend)
	require.Equal(t, []string{"/var/log/app", "/var/log/other"}, cfg.Archive.BasePaths)
	require.Equal(t, DefaultPatterns, cfg.Archive.Patterns)
	require.Equal(t, "/var/run/archive-state.json", cfg.Archive.StateFile)
	require.Equal(t, "unknown-pod", cfg.Archive.Identity)
	require.Equal(t, 10, cfg.Archive.Workers)
	require.Equal(t, PolicySelection, cfg.Archive.FingerprintPolicy)
	require.Equal(t, 3, cfg.Retry.Attempts)
	require.Equal(t, time.Second, cfg.Retry.BaseDelay)
	require.Equal(t, time.Second, cfg.Collect.FilePacing)
	require.Equal(t, 2*time.Second, cfg.Collect.LocationPacing)
	require.Equal(t, "fid", cfg.Collect.Workload)
	require.Len(t, cfg.Collect.Locations, 4)

	require.NoError(t, cfg.ValidateArchive())
}

func TestValidateArchive_MissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
		want  string
	}{
		{name: "bucket", unset: "S3_BUCKET", want: "S3_BUCKET"},
		{name: "prefix", unset: "S3_PREFIX", want: "S3_PREFIX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setArchiveEnv(t)
			t.Setenv(tt.unset, "")

			cfg, err := Load()
			require.NoError(t, err)

			err = cfg.ValidateArchive()
			var missing *ErrMissingRequiredEnvVar
			require.True(t, errors.As(err, &missing), "got %v", err)
			require.Equal(t, tt.want, missing.Name)
		})
	}
}

func TestLoad_InvalidNumber(t *testing.T) {
	setArchiveEnv(t)
	t.Setenv("ARCHIVE_WORKERS", "ten")

	_, err := Load()
	var invalid *ErrInvalidValue
	require.True(t, errors.As(err, &invalid))
	require.Equal(t, "ARCHIVE_WORKERS", invalid.Name)
}

func TestValidateArchive_BadPolicy(t *testing.T) {
	setArchiveEnv(t)
	t.Setenv("FINGERPRINT_POLICY", "sometimes")

	cfg, err := Load()
	require.NoError(t, err)
	require.Error(t, cfg.ValidateArchive())
}

func TestValidateCollect(t *testing.T) {
	clearEnv(t)
	t.Setenv("S3_BUCKET", "")
	t.Setenv("KUBECONFIG", "/home/op/.kube/config")
	t.Setenv("NAMESPACE", "fid")
	t.Setenv("DESTINATION", "/tmp/logs")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateCollect())
	require.False(t, cfg.UploadEnabled())

	cfg.Collect.Namespace = ""
	var missing *ErrMissingRequiredEnvVar
	require.True(t, errors.As(cfg.ValidateCollect(), &missing))
	require.Equal(t, "NAMESPACE", missing.Name)
}

func TestValidateCollect_MinIORequiresCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("KUBECONFIG", "/home/op/.kube/config")
	t.Setenv("NAMESPACE", "fid")
	t.Setenv("DESTINATION", "/tmp/logs")
	t.Setenv("STORAGE_BACKEND", "minio")
	t.Setenv("S3_BUCKET", "logs")
	t.Setenv("S3_ENDPOINT", "localhost:9000")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.UploadEnabled())

	var missing *ErrMissingRequiredEnvVar
	require.True(t, errors.As(cfg.ValidateCollect(), &missing))
	require.Equal(t, "MINIO_ACCESS_KEY", missing.Name)
}

func TestLoadLocations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locations.yaml")
	content := `
app:
  path: /var/log/app
  files: [app.log, app_access.log]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	locs, err := LoadLocations(path)
	require.NoError(t, err)
	require.Equal(t, map[string]Location{
		"app": {Path: "/var/log/app", Files: []string{"app.log", "app_access.log"}},
	}, locs)

	clearEnv(t)
	t.Setenv("LOG_LOCATIONS_FILE", path)
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultLocations(), cfg.Collect.Locations)

	require.NoError(t, cfg.LoadCollectLocations())
	require.Equal(t, locs, cfg.Collect.Locations)
}

func TestBadLocationsFileOnlyFailsCollect(t *testing.T) {
	setArchiveEnv(t)
	t.Setenv("LOG_LOCATIONS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateArchive())

	require.Error(t, cfg.LoadCollectLocations())
	require.Equal(t, DefaultLocations(), cfg.Collect.Locations)
}

func TestUploadEnabled_LocalBackendNeedsDir(t *testing.T) {
	clearEnv(t)
	t.Setenv("S3_BUCKET", "")
	t.Setenv("STORAGE_LOCAL_DIR", "")
	t.Setenv("STORAGE_BACKEND", "local")

	cfg, err := Load()
	require.NoError(t, err)
	require.False(t, cfg.UploadEnabled())

	t.Setenv("STORAGE_LOCAL_DIR", t.TempDir())
	cfg, err = Load()
	require.NoError(t, err)
	require.True(t, cfg.UploadEnabled())
}

func TestLoadLocations_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locations.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  files: [a.log]\n"), 0644))

	_, err := LoadLocations(path)
	require.Error(t, err)

	_, err = LoadLocations(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

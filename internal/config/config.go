package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Storage StorageConfig
	Archive ArchiveConfig
	Collect CollectConfig
	Retry   RetryConfig
	Log     LogConfig
	Metrics MetricsConfig
	Catalog CatalogConfig
}

type StorageConfig struct {
	Backend  string // "s3" | "gcs" | "minio" | "local"
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	LocalDir string

	MinIOAccessKey string
	MinIOSecretKey string
	MinIOUseSSL    bool
}

type ArchiveConfig struct {
	BasePaths         []string
	Patterns          []string
	StateFile         string
	Identity          string
	Workers           int
	FingerprintPolicy string // "selection" | "success"
}

type CollectConfig struct {
	Kubeconfig     string
	Namespace      string
	Destination    string
	Workload       string
	LocationsFile  string
	Locations      map[string]Location
	FilePacing     time.Duration
	LocationPacing time.Duration
}

// Location is a directory inside a pod and the log files expected there.
type Location struct {
	Path  string   `yaml:"path"`
	Files []string `yaml:"files"`
}

type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
}

type LogConfig struct {
	Format string
	Level  string
}

type MetricsConfig struct {
	Address     string
	Pushgateway string
}

type CatalogConfig struct {
	PostgresDSN string
}

const (
	PolicySelection = "selection"
	PolicySuccess   = "success"
)

// DefaultBasePaths are the log directories of a RadiantOne FID node.
var DefaultBasePaths = []string{
	"/opt/radiantone/vds/vds_server/logs",
	"/opt/radiantone/vds/vds_server/logs/jetty",
	"/opt/radiantone/vds/vds_server/logs/sync_engine",
	"/opt/radiantone/vds/logs",
}

var DefaultPatterns = []string{"*.log", "*.log.*", "*.log.zip"}

// DefaultLocations returns the log locations collected from FID pods.
func DefaultLocations() map[string]Location {
	return map[string]Location{
		"vds_server": {
			Path:  "/opt/radiantone/vds/vds_server/logs",
			Files: []string{"vds_server.log", "vds_server_access.log", "periodiccache.log", "vds_events.log"},
		},
		"jetty": {
			Path:  "/opt/radiantone/vds/vds_server/logs/jetty",
			Files: []string{"web.log", "web_access.log"},
		},
		"sync_engine": {
			Path:  "/opt/radiantone/vds/vds_server/logs/sync_engine",
			Files: []string{"sync_engine.log"},
		},
		"alerts": {
			Path:  "/opt/radiantone/vds/logs",
			Files: []string{"alerts.log"},
		},
	}
}

type ErrMissingRequiredEnvVar struct {
	Name string
}

func (e *ErrMissingRequiredEnvVar) Error() string {
	return fmt.Sprintf("required environment variable %q is not set", e.Name)
}

type ErrInvalidValue struct {
	Name  string
	Value string
	Err   error
}

func (e *ErrInvalidValue) Error() string {
	return fmt.Sprintf("invalid value %q for %s: %v", e.Value, e.Name, e.Err)
}

func (e *ErrInvalidValue) Unwrap() error { return e.Err }

// Load reads configuration from environment variables and fills defaults.
// Required fields are checked per command by ValidateArchive and ValidateCollect.
func Load() (Config, error) {
	var errs []error

	workers := getenvInt("ARCHIVE_WORKERS", 10, &errs)
	attempts := getenvInt("RETRY_ATTEMPTS", 3, &errs)
	baseDelay := getenvDuration("RETRY_BASE_DELAY", time.Second, &errs)
	filePacing := getenvDuration("FILE_PACING", time.Second, &errs)
	locationPacing := getenvDuration("LOCATION_PACING", 2*time.Second, &errs)
	minioSSL := getenvBool("MINIO_USE_SSL", true, &errs)

	cfg := Config{
		Storage: StorageConfig{
			Backend:        strings.ToLower(getenvDefault("STORAGE_BACKEND", "s3")),
			Bucket:         os.Getenv("S3_BUCKET"),
			Prefix:         os.Getenv("S3_PREFIX"),
			Region:         os.Getenv("S3_REGION"),
			Endpoint:       os.Getenv("S3_ENDPOINT"),
			LocalDir:       os.Getenv("STORAGE_LOCAL_DIR"),
			MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinIOUseSSL:    minioSSL,
		},
		Archive: ArchiveConfig{
			BasePaths:         getenvList("BASE_PATHS", DefaultBasePaths),
			Patterns:          getenvList("FILE_PATTERNS", DefaultPatterns),
			StateFile:         getenvDefault("STATE_FILE", "/var/run/archive-state.json"),
			Identity:          getenvDefault("POD_NAME", "unknown-pod"),
			Workers:           workers,
			FingerprintPolicy: strings.ToLower(getenvDefault("FINGERPRINT_POLICY", PolicySelection)),
		},
		Collect: CollectConfig{
			Kubeconfig:     os.Getenv("KUBECONFIG"),
			Namespace:      os.Getenv("NAMESPACE"),
			Destination:    os.Getenv("DESTINATION"),
			Workload:       getenvDefault("WORKLOAD", "fid"),
			LocationsFile:  os.Getenv("LOG_LOCATIONS_FILE"),
			Locations:      DefaultLocations(),
			FilePacing:     filePacing,
			LocationPacing: locationPacing,
		},
		Retry: RetryConfig{
			Attempts:  attempts,
			BaseDelay: baseDelay,
		},
		Log: LogConfig{
			Format: getenvDefault("LOG_FORMAT", "json"),
			Level:  getenvDefault("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Address:     os.Getenv("METRICS_ADDR"),
			Pushgateway: os.Getenv("METRICS_PUSHGATEWAY"),
		},
		Catalog: CatalogConfig{
			PostgresDSN: os.Getenv("CATALOG_DSN"),
		},
	}

	if len(errs) > 0 {
		return Config{}, errs[0]
	}
	return cfg, nil
}

// LoadCollectLocations replaces the built-in location map with the contents
// of LocationsFile, when one is configured. Only collect runs need it.
func (c *Config) LoadCollectLocations() error {
	if c.Collect.LocationsFile == "" {
		return nil
	}
	locs, err := LoadLocations(c.Collect.LocationsFile)
	if err != nil {
		return err
	}
	c.Collect.Locations = locs
	return nil
}

// LoadLocations reads a YAML mapping of location name to {path, files}.
func LoadLocations(path string) (map[string]Location, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locations file %s: %w", path, err)
	}

	var locs map[string]Location
	if err := yaml.Unmarshal(data, &locs); err != nil {
		return nil, fmt.Errorf("parse locations file %s: %w", path, err)
	}
	if len(locs) == 0 {
		return nil, fmt.Errorf("locations file %s defines no locations", path)
	}
	for name, loc := range locs {
		if loc.Path == "" {
			return nil, fmt.Errorf("location %q has no path", name)
		}
		if len(loc.Files) == 0 {
			return nil, fmt.Errorf("location %q lists no files", name)
		}
	}
	return locs, nil
}

// ValidateArchive checks the settings the local archive run cannot work without.
func (c Config) ValidateArchive() error {
	if err := c.validateStorage(true); err != nil {
		return err
	}
	if c.Storage.Prefix == "" {
		return &ErrMissingRequiredEnvVar{Name: "S3_PREFIX"}
	}
	if len(c.Archive.BasePaths) == 0 {
		return &ErrMissingRequiredEnvVar{Name: "BASE_PATHS"}
	}
	if c.Archive.Workers < 1 {
		return &ErrInvalidValue{Name: "ARCHIVE_WORKERS", Value: strconv.Itoa(c.Archive.Workers), Err: fmt.Errorf("must be at least 1")}
	}
	switch c.Archive.FingerprintPolicy {
	case PolicySelection, PolicySuccess:
	default:
		return &ErrInvalidValue{Name: "FINGERPRINT_POLICY", Value: c.Archive.FingerprintPolicy, Err: fmt.Errorf("want %q or %q", PolicySelection, PolicySuccess)}
	}
	return c.validateRetry()
}

// ValidateCollect checks the settings of the remote collect run. The bucket is
// optional there: without it files are only staged locally.
func (c Config) ValidateCollect() error {
	if c.Collect.Kubeconfig == "" {
		return &ErrMissingRequiredEnvVar{Name: "KUBECONFIG"}
	}
	if c.Collect.Namespace == "" {
		return &ErrMissingRequiredEnvVar{Name: "NAMESPACE"}
	}
	if c.Collect.Destination == "" {
		return &ErrMissingRequiredEnvVar{Name: "DESTINATION"}
	}
	if len(c.Collect.Locations) == 0 {
		return &ErrMissingRequiredEnvVar{Name: "LOG_LOCATIONS_FILE"}
	}
	if c.UploadEnabled() {
		if err := c.validateStorage(false); err != nil {
			return err
		}
	}
	return c.validateRetry()
}

// UploadEnabled reports whether collected files are also sent to object storage.
// The local backend counts only when STORAGE_LOCAL_DIR is set.
func (c Config) UploadEnabled() bool {
	if c.Storage.Backend == "local" {
		return c.Storage.LocalDir != ""
	}
	return c.Storage.Bucket != ""
}

func (c Config) validateStorage(requireBucket bool) error {
	switch c.Storage.Backend {
	case "s3", "gcs":
	case "minio":
		if c.Storage.Endpoint == "" {
			return &ErrMissingRequiredEnvVar{Name: "S3_ENDPOINT"}
		}
		if c.Storage.MinIOAccessKey == "" {
			return &ErrMissingRequiredEnvVar{Name: "MINIO_ACCESS_KEY"}
		}
		if c.Storage.MinIOSecretKey == "" {
			return &ErrMissingRequiredEnvVar{Name: "MINIO_SECRET_KEY"}
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return &ErrMissingRequiredEnvVar{Name: "STORAGE_LOCAL_DIR"}
		}
		return nil
	default:
		return &ErrInvalidValue{Name: "STORAGE_BACKEND", Value: c.Storage.Backend, Err: fmt.Errorf("unknown backend")}
	}
	if requireBucket && c.Storage.Bucket == "" {
		return &ErrMissingRequiredEnvVar{Name: "S3_BUCKET"}
	}
	return nil
}

func (c Config) validateRetry() error {
	if c.Retry.Attempts < 1 {
		return &ErrInvalidValue{Name: "RETRY_ATTEMPTS", Value: strconv.Itoa(c.Retry.Attempts), Err: fmt.Errorf("must be at least 1")}
	}
	return nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getenvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, &ErrInvalidValue{Name: key, Value: v, Err: err})
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, &ErrInvalidValue{Name: key, Value: v, Err: err})
		return def
	}
	return parsed
}

func getenvBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, &ErrInvalidValue{Name: key, Value: v, Err: err})
		return def
	}
	return parsed
}

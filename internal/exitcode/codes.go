package exitcode

// Exit codes for the log-archiver CLI.
// Schedulers can use these to decide retry strategy.
const (
	// Success - batch completed, including batches with per-file failures
	Success = 0

	// ConfigError - missing or invalid configuration
	// Don't retry: fix the config first
	ConfigError = 1

	// PreconditionError - bucket or Kubernetes API unreachable at startup
	// Retry with backoff
	PreconditionError = 2

	// ApplicationError - batch aborted (interrupted or unexpected failure)
	// Check logs
	ApplicationError = 3
)

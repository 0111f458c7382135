package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/archiver"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/exitcode"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/kube"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/logging"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/source"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/storage"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/transfer"
)

func NewCollectCmd() *cobra.Command {
	var kubeconfig string
	var namespace string
	var destination string
	var bucket string
	var runID string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Copy log files out of running pods, optionally uploading them",
		Long: "Lists the running pods of the workload, copies the known log files of every\n" +
			"location into {destination}/{namespace}/{pod}[-date]/ and, when a bucket is\n" +
			"configured, uploads them to {namespace}/{pod}/{filename}.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// Flags override the environment.
			flags := cmd.Flags()
			if flags.Changed("kubeconfig") {
				cfg.Collect.Kubeconfig = kubeconfig
			}
			if flags.Changed("namespace") {
				cfg.Collect.Namespace = namespace
			}
			if flags.Changed("destination") {
				cfg.Collect.Destination = destination
			}
			if flags.Changed("s3-bucket") {
				cfg.Storage.Bucket = bucket
			}

			if err := cfg.LoadCollectLocations(); err != nil {
				return exitErr(exitcode.ConfigError, err)
			}
			if err := cfg.ValidateCollect(); err != nil {
				return exitErr(exitcode.ConfigError, err)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if runID == "" {
				runID = logging.GenerateRunID()
			}
			ctx = logging.WithRunID(ctx, runID)

			slog.Info("starting log collector",
				"version", Version,
				"run_id", runID,
				"namespace", cfg.Collect.Namespace,
				"workload", cfg.Collect.Workload,
				"destination", cfg.Collect.Destination,
				"upload", cfg.UploadEnabled(),
			)

			m := startMetrics(ctx, cfg.Metrics)

			client, err := kube.NewClient(cfg.Collect.Kubeconfig)
			if err != nil {
				return exitErr(exitcode.ConfigError, err)
			}
			if err := client.Ping(ctx); err != nil {
				return exitErr(exitcode.PreconditionError, err)
			}

			var store storage.ObjectStore
			opts := []archiver.Option{}
			if cfg.UploadEnabled() {
				store, err = openStore(ctx, cfg.Storage)
				if err != nil {
					return err
				}
				defer store.Close()
				opts = append(opts, archiver.WithStorageURI(store.URI))
			}

			if err := os.MkdirAll(cfg.Collect.Destination, 0755); err != nil {
				return exitErr(exitcode.PreconditionError, fmt.Errorf("create destination: %w", err))
			}

			cat := openCatalog(ctx, cfg.Catalog)
			defer cat.Close()
			opts = append(opts, archiver.WithCatalog(cat))

			engine := transfer.NewRemote(client, store, cfg.Collect.Destination, retryPolicy(cfg.Retry),
				transfer.WithBackend(cfg.Storage.Backend))
			remote := source.NewRemoteSource(client, cfg.Collect.Namespace, cfg.Collect.Workload, cfg.Collect.Locations)

			summary, err := archiver.NewCollector(cfg.Collect, remote, engine, opts...).Run(ctx)
			pushMetrics(m, cfg.Metrics, "collect", cfg.Collect.Namespace)
			if err != nil {
				if errors.Is(err, kube.ErrAPIUnavailable) {
					return exitErr(exitcode.PreconditionError, err)
				}
				return exitErr(exitcode.ApplicationError, fmt.Errorf("collect batch %s: %w", summary.RunID, err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "run=%s files=%d succeeded=%d failed=%d\n",
				summary.RunID, summary.Enumerated, summary.Succeeded, summary.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig file (env KUBECONFIG)")
	cmd.Flags().StringVar(&namespace, "namespace", "", "Kubernetes namespace (env NAMESPACE)")
	cmd.Flags().StringVar(&destination, "destination", "", "Local staging directory (env DESTINATION)")
	cmd.Flags().StringVar(&bucket, "s3-bucket", "", "Optional bucket to upload collected files to (env S3_BUCKET)")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (default: random UUIDv7)")
	return cmd
}

package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/obsrvr-log-archiver/internal/archiver"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/exitcode"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/logging"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/source"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/state"
	"github.com/withObsrvr/obsrvr-log-archiver/internal/transfer"
)

func NewArchiveCmd() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Archive new or changed log files from local directories",
		Long: "Scans BASE_PATHS for log files, skips files whose content is unchanged since the\n" +
			"last run, and uploads the rest to {S3_PREFIX}/{date}/{POD_NAME}/{filename}.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateArchive(); err != nil {
				return exitErr(exitcode.ConfigError, err)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if runID == "" {
				runID = logging.GenerateRunID()
			}
			ctx = logging.WithRunID(ctx, runID)

			slog.Info("starting log archiver",
				"version", Version,
				"git_sha", GitSHA,
				"run_id", runID,
				"backend", cfg.Storage.Backend,
				"bucket", cfg.Storage.Bucket,
				"prefix", cfg.Storage.Prefix,
				"identity", cfg.Archive.Identity,
			)

			m := startMetrics(ctx, cfg.Metrics)

			store, err := openStore(ctx, cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			cat := openCatalog(ctx, cfg.Catalog)
			defer cat.Close()
			opts := []archiver.Option{archiver.WithStorageURI(store.URI), archiver.WithCatalog(cat)}

			engine := transfer.NewLocal(store, cfg.Storage.Prefix, retryPolicy(cfg.Retry),
				transfer.WithBackend(cfg.Storage.Backend))

			a := archiver.New(
				cfg.Archive,
				source.NewLocalSource(cfg.Archive.BasePaths, cfg.Archive.Patterns, cfg.Archive.Identity),
				state.NewFileStore(cfg.Archive.StateFile),
				engine,
				opts...,
			)

			summary, err := a.RunBatch(ctx)
			pushMetrics(m, cfg.Metrics, "archive", cfg.Archive.Identity)
			if err != nil {
				return exitErr(exitcode.ApplicationError, fmt.Errorf("archive batch %s: %w", summary.RunID, err))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "run=%s enumerated=%d selected=%d succeeded=%d failed=%d skipped=%d\n",
				summary.RunID, summary.Enumerated, summary.Selected, summary.Succeeded, summary.Failed, summary.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (default: random UUIDv7)")
	return cmd
}

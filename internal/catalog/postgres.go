package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// PostgresWriter implements Writer using PostgreSQL.
type PostgresWriter struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgresWriter connects to the catalog and creates its tables.
func NewPostgresWriter(ctx context.Context, cfg Config) (*PostgresWriter, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}

	// Configure connection pool
	poolCfg.MaxConns = 5
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	w := &PostgresWriter{
		pool: pool,
		log:  slog.With("component", "catalog"),
	}

	if err := w.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	w.log.Info("connected to PostgreSQL catalog")
	return w, nil
}

// initSchema creates the catalog tables if they don't exist.
func (w *PostgresWriter) initSchema(ctx context.Context) error {
	_, err := w.pool.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

const insertRunSQL = `
	INSERT INTO archive_runs (
		run_id, variant, identity, started_at, finished_at,
		enumerated, selected, succeeded, failed, skipped
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (run_id)
	DO UPDATE SET
		finished_at = EXCLUDED.finished_at,
		enumerated = EXCLUDED.enumerated,
		selected = EXCLUDED.selected,
		succeeded = EXCLUDED.succeeded,
		failed = EXCLUDED.failed,
		skipped = EXCLUDED.skipped
`

const insertObjectSQL = `
	INSERT INTO archived_objects (
		run_id, source_path, source_identity, namespace, object_key, storage_uri,
		partition_date, fingerprint, byte_size, attempts, outcome, error
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (run_id, source_identity, source_path)
	DO UPDATE SET
		object_key = EXCLUDED.object_key,
		storage_uri = EXCLUDED.storage_uri,
		byte_size = EXCLUDED.byte_size,
		attempts = EXCLUDED.attempts,
		outcome = EXCLUDED.outcome,
		error = EXCLUDED.error,
		recorded_at = NOW()
`

// RecordBatch writes the run row and one row per object in a single transaction.
func (w *PostgresWriter) RecordBatch(ctx context.Context, rec BatchRecord) error {
	err := pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(insertRunSQL,
			rec.RunID,
			rec.Variant,
			rec.Identity,
			rec.StartedAt,
			rec.FinishedAt,
			rec.Enumerated,
			rec.Selected,
			rec.Succeeded,
			rec.Failed,
			rec.Skipped,
		)
		for _, obj := range rec.Objects {
			batch.Queue(insertObjectSQL,
				rec.RunID,
				obj.SourcePath,
				obj.SourceIdentity,
				obj.Namespace,
				obj.ObjectKey,
				obj.StorageURI,
				obj.PartitionDate,
				obj.Fingerprint,
				obj.Bytes,
				obj.Attempts,
				obj.Outcome,
				obj.Error,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("record batch %s: %w", rec.RunID, err)
	}

	w.log.Debug("recorded batch", "run_id", rec.RunID, "objects", len(rec.Objects))
	return nil
}

// Close releases the connection pool.
func (w *PostgresWriter) Close() error {
	w.pool.Close()
	return nil
}

var _ Writer = (*PostgresWriter)(nil)

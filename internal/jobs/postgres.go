package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/acidbase/abgassist/constants"
	"github.com/acidbase/abgassist/internal/common"
)

// PostgresStore backs the job store with a pgx pool, for deployments where
// several service instances share one database.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id          UUID PRIMARY KEY,
	kind        TEXT NOT NULL,
	status      TEXT NOT NULL,
	data        JSONB,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at DESC);
`

// OpenPostgres connects a pool using the store configuration and ensures
// the jobs table exists.
func OpenPostgres(ctx context.Context, cfg common.StoreConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("jobstore.postgres.connecting")
	pc, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "abgassist"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("jobstore.postgres.ready")
	return &PostgresStore{pool: pool, log: logger}, nil
}

func (s *PostgresStore) Put(ctx context.Context, job Job) error {
	var data any
	if len(job.Data) > 0 {
		data = string(job.Data)
	}
	var finished *time.Time
	if job.FinishedAt != nil {
		t := job.FinishedAt.UTC()
		finished = &t
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (id, kind, status, data, error, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			data = excluded.data,
			error = excluded.error,
			finished_at = excluded.finished_at
	`, job.ID, string(job.Kind), string(job.Status), data, job.Error, job.CreatedAt.UTC(), finished)
	if err != nil {
		s.log.Error("jobstore.postgres.put_failed", "job_id", job.ID, "error", err)
	}
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, kind, status, data, error, created_at, finished_at
		FROM jobs WHERE id = $1
	`, id)
	job, err := scanPGJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrJobNotFound
	}
	return job, err
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, kind, status, data, error, created_at, finished_at
		FROM jobs ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		job, err := scanPGJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPGJob(row pgx.Row) (Job, error) {
	var (
		job      Job
		kind     string
		status   string
		data     *string
		finished *time.Time
	)
	if err := row.Scan(&job.ID, &kind, &status, &data, &job.Error, &job.CreatedAt, &finished); err != nil {
		return Job{}, err
	}
	job.Kind = constants.JobKind(kind)
	job.Status = constants.JobStatus(status)
	if data != nil && *data != "" {
		job.Data = json.RawMessage(*data)
	}
	job.FinishedAt = finished
	return job, nil
}

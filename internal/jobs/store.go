// Package jobs persists an audit row per import run so operators can
// answer "who imported what, when, and how did it go" after progress
// entries have expired.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/bmlt-tools/naws-importer/internal/importer"
)

// ErrNotFound reports an unknown job id.
var ErrNotFound = errors.New("import job not found")

// Job is one import run's audit record.
type Job struct {
	ID          string
	FileName    string
	SubmittedBy string
	Status      string
	Phase       importer.Phase
	Outcome     *importer.ImportOutcome
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Job status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Store reads and writes import job rows.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new running job row.
func (s *Store) Create(ctx context.Context, id, fileName, submittedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_jobs (id, file_name, submitted_by, status, phase, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		id, fileName, submittedBy, StatusRunning, importer.PhaseParsing)
	if err != nil {
		return fmt.Errorf("insert import job: %w", err)
	}
	return nil
}

// UpdatePhase records the pipeline's current phase.
func (s *Store) UpdatePhase(ctx context.Context, id string, phase importer.Phase) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_jobs SET phase = $1 WHERE id = $2`, phase, id)
	if err != nil {
		return fmt.Errorf("update import job phase: %w", err)
	}
	return checkAffected(res)
}

// Complete finalizes the job with its outcome. The status is derived
// from the outcome unless the run was cancelled.
func (s *Store) Complete(ctx context.Context, id string, outcome *importer.ImportOutcome, cancelled bool) error {
	status := StatusFailed
	switch {
	case cancelled:
		status = StatusCancelled
	case outcome != nil && outcome.Success:
		status = StatusCompleted
	}

	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET status = $1, outcome = $2, completed_at = NOW()
		WHERE id = $3`,
		status, payload, id)
	if err != nil {
		return fmt.Errorf("complete import job: %w", err)
	}
	return checkAffected(res)
}

// Get fetches one job by id.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	var job Job
	var outcome []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, file_name, submitted_by, status, phase, outcome, created_at, completed_at
		FROM import_jobs WHERE id = $1`, id).
		Scan(&job.ID, &job.FileName, &job.SubmittedBy, &job.Status, &job.Phase,
			&outcome, &job.CreatedAt, &job.CompletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch import job: %w", err)
	}
	if len(outcome) > 0 {
		job.Outcome = &importer.ImportOutcome{}
		if err := json.Unmarshal(outcome, job.Outcome); err != nil {
			return nil, fmt.Errorf("decode import job outcome: %w", err)
		}
	}
	return &job, nil
}

// Recent lists the most recent jobs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, file_name, submitted_by, status, phase, created_at, completed_at
		FROM import_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.FileName, &job.SubmittedBy, &job.Status,
			&job.Phase, &job.CreatedAt, &job.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan import job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/marcus-qen/clinkerplan/internal/migration"
)

const (
	defaultJobListLimit = 100
	maxJobListLimit     = 1000
)

var ErrInvalidJobTransition = errors.New("invalid job status transition")

// JobQuery controls filtering for job history lookups.
type JobQuery struct {
	Status        string
	UserID        string
	SubmittedAfter  *time.Time
	SubmittedBefore *time.Time
	Limit         int
}

// Store persists jobs in SQLite. It is the durable half of the job queue:
// the Scheduler dispatches work, the Store records state transitions.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a jobs database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open jobs db: %w", err)
	}

	// Single pooled connection: deterministic write ordering under concurrent
	// worker goroutines without relying on SQLite's own lock retries.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS jobs (
		id                    TEXT PRIMARY KEY,
		type                  TEXT NOT NULL,
		payload               TEXT NOT NULL DEFAULT '',
		user_id               TEXT NOT NULL DEFAULT '',
		retry_max_attempts    INTEGER,
		retry_initial_backoff TEXT,
		retry_multiplier      REAL,
		retry_max_backoff     TEXT,
		status                TEXT NOT NULL,
		progress_percent      INTEGER NOT NULL DEFAULT 0,
		progress_message      TEXT NOT NULL DEFAULT '',
		attempt               INTEGER NOT NULL DEFAULT 1,
		max_attempts          INTEGER NOT NULL DEFAULT 1,
		retry_scheduled_at    TEXT,
		result_ref            TEXT NOT NULL DEFAULT '',
		result_summary        TEXT NOT NULL DEFAULT '',
		error_payload         TEXT NOT NULL DEFAULT '',
		submitted_at          TEXT NOT NULL,
		started_at            TEXT,
		ended_at              TEXT,
		updated_at            TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_jobs_submitted_at ON jobs(submitted_at)`)

	if err := migration.EnsureVersion(db, 1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema version: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Submit persists a new pending job.
func (s *Store) Submit(job Job) (*Job, error) {
	if strings.TrimSpace(job.Type) == "" {
		return nil, fmt.Errorf("type is required")
	}
	if err := validateRetryPolicy(job.RetryPolicy); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = now
	}
	job.UpdatedAt = now
	job.Status = StatusPending
	job.Attempt = 0
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = 1
	}

	_, err := s.db.Exec(`INSERT INTO jobs (id, type, payload, user_id, retry_max_attempts, retry_initial_backoff, retry_multiplier, retry_max_backoff, status, progress_percent, progress_message, attempt, max_attempts, retry_scheduled_at, result_ref, result_summary, error_payload, submitted_at, started_at, ended_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', 0, ?, NULL, '', '', '', ?, NULL, NULL, ?)`,
		job.ID,
		strings.TrimSpace(job.Type),
		string(job.Payload),
		strings.TrimSpace(job.UserID),
		nullableRetryMaxAttempts(job.RetryPolicy),
		nullableRetryDuration(job.RetryPolicy, func(p *RetryPolicy) string { return p.InitialBackoff }),
		nullableRetryMultiplier(job.RetryPolicy),
		nullableRetryDuration(job.RetryPolicy, func(p *RetryPolicy) string { return p.MaxBackoff }),
		job.Status,
		job.MaxAttempts,
		job.SubmittedAt.Format(time.RFC3339Nano),
		job.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	out := job
	return &out, nil
}

// GetJob returns one job by id.
func (s *Store) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(selectJobColumns+` FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListJobs returns jobs matching query, newest submission first.
func (s *Store) ListJobs(query JobQuery) ([]Job, error) {
	clauses := make([]string, 0, 4)
	args := make([]any, 0, 4)

	if status := strings.TrimSpace(query.Status); status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, status)
	}
	if userID := strings.TrimSpace(query.UserID); userID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, userID)
	}
	if query.SubmittedAfter != nil {
		clauses = append(clauses, "submitted_at >= ?")
		args = append(args, query.SubmittedAfter.UTC().Format(time.RFC3339Nano))
	}
	if query.SubmittedBefore != nil {
		clauses = append(clauses, "submitted_at <= ?")
		args = append(args, query.SubmittedBefore.UTC().Format(time.RFC3339Nano))
	}

	stmt := selectJobColumns + ` FROM jobs`
	if len(clauses) > 0 {
		stmt += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	stmt += ` ORDER BY submitted_at DESC LIMIT ?`
	limit := normalizeJobLimit(query.Limit)
	args = append(args, limit)

	rows, err := s.db.Query(stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Job, 0, limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			continue
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// ListPending returns pending jobs in submission order, used at startup to
// re-enqueue work that was persisted but never dispatched.
func (s *Store) ListPending() ([]Job, error) {
	rows, err := s.db.Query(selectJobColumns+` FROM jobs WHERE status = ? ORDER BY submitted_at ASC`, StatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			continue
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// MarkRunning transitions a job from pending to running, incrementing Attempt.
func (s *Store) MarkRunning(jobID string) (*Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("job id required")
	}

	now := time.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	var attempt int
	if err := tx.QueryRow(`SELECT status, attempt FROM jobs WHERE id = ?`, jobID).Scan(&current, &attempt); err != nil {
		return nil, err
	}
	if current != StatusPending {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidJobTransition, current, StatusRunning)
	}

	res, err := tx.Exec(`UPDATE jobs SET status = ?, attempt = ?, started_at = ?, retry_scheduled_at = NULL, updated_at = ? WHERE id = ? AND status = ?`,
		StatusRunning, attempt+1, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), jobID, StatusPending)
	if err != nil {
		return nil, err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidJobTransition, current, StatusRunning)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetJob(jobID)
}

// UpdateProgress writes progress for a running job. Best-effort: losing one
// write under contention is acceptable, so it does not retry on conflict.
func (s *Store) UpdateProgress(jobID string, percent int, message string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("job id required")
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	res, err := s.db.Exec(`UPDATE jobs SET progress_percent = ?, progress_message = ?, updated_at = ? WHERE id = ? AND status = ?`,
		percent, message, time.Now().UTC().Format(time.RFC3339Nano), jobID, StatusRunning)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CompleteSuccess finalizes a running job as success.
func (s *Store) CompleteSuccess(jobID, resultRef string, resultSummary json.RawMessage) error {
	return s.transitionTerminal(jobID, StatusSuccess, resultRef, resultSummary, nil, nil)
}

// CompleteFailed finalizes a running job as failed. If retryAt is non-nil,
// the job is instead returned to pending with retry_scheduled_at set rather
// than moved to a terminal state; the caller decides whether attempts remain.
func (s *Store) CompleteFailed(jobID string, errorPayload json.RawMessage, retryAt *time.Time) error {
	if retryAt != nil {
		return s.scheduleRetry(jobID, errorPayload, *retryAt)
	}
	return s.transitionTerminal(jobID, StatusFailed, "", nil, errorPayload, nil)
}

func (s *Store) scheduleRetry(jobID string, errorPayload json.RawMessage, retryAt time.Time) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("job id required")
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(`UPDATE jobs
		SET status = ?, error_payload = ?, retry_scheduled_at = ?, ended_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		StatusPending, string(errorPayload), retryAt.UTC().Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		jobID, StatusRunning,
	)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: retry requires job in running", ErrInvalidJobTransition)
	}
	return nil
}

// Cancel transitions a job from pending or running to cancelled.
func (s *Store) Cancel(jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("job id required")
	}

	now := time.Now().UTC()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	if err := tx.QueryRow(`SELECT status FROM jobs WHERE id = ?`, jobID).Scan(&current); err != nil {
		return err
	}
	if current != StatusPending && current != StatusRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJobTransition, current, StatusCancelled)
	}

	res, err := tx.Exec(`UPDATE jobs SET status = ?, ended_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusCancelled, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), jobID, current)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJobTransition, current, StatusCancelled)
	}
	return tx.Commit()
}

func (s *Store) transitionTerminal(jobID, status, resultRef string, resultSummary, errorPayload json.RawMessage, _ *time.Time) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("job id required")
	}

	now := time.Now().UTC()
	res, err := s.db.Exec(`UPDATE jobs
		SET status = ?, result_ref = ?, result_summary = ?, error_payload = ?, retry_scheduled_at = NULL, ended_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		status, resultRef, string(resultSummary), string(errorPayload), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		jobID, StatusRunning,
	)
	if err != nil {
		return err
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: running -> %s", ErrInvalidJobTransition, status)
	}
	return nil
}

// RecoverCrashedJobs marks every job left in running as failed with reason
// "restart". Call once at startup before the scheduler resumes dispatching.
func (s *Store) RecoverCrashedJobs() ([]Job, error) {
	rows, err := s.db.Query(selectJobColumns+` FROM jobs WHERE status = ?`, StatusRunning)
	if err != nil {
		return nil, err
	}
	var stale []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			continue
		}
		stale = append(stale, *job)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(stale) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	payload, _ := json.Marshal(map[string]string{"reason": "restart"})
	for _, job := range stale {
		_, err := s.db.Exec(`UPDATE jobs SET status = ?, error_payload = ?, ended_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			StatusFailed, string(payload), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano), job.ID, StatusRunning)
		if err != nil {
			return nil, fmt.Errorf("recover job %s: %w", job.ID, err)
		}
	}
	return stale, nil
}

const selectJobColumns = `SELECT id, type, payload, user_id, retry_max_attempts, retry_initial_backoff, retry_multiplier, retry_max_backoff, status, progress_percent, progress_message, attempt, max_attempts, retry_scheduled_at, result_ref, result_summary, error_payload, submitted_at, started_at, ended_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var (
		job                 Job
		payload             string
		retryMaxAttempts    sql.NullInt64
		retryInitialBackoff sql.NullString
		retryMultiplier     sql.NullFloat64
		retryMaxBackoff     sql.NullString
		retryScheduledAt    sql.NullString
		resultSummary       string
		errorPayload        string
		submittedAt         string
		startedAt           sql.NullString
		endedAt             sql.NullString
		updatedAt           string
	)

	if err := s.Scan(
		&job.ID,
		&job.Type,
		&payload,
		&job.UserID,
		&retryMaxAttempts,
		&retryInitialBackoff,
		&retryMultiplier,
		&retryMaxBackoff,
		&job.Status,
		&job.ProgressPercent,
		&job.ProgressMessage,
		&job.Attempt,
		&job.MaxAttempts,
		&retryScheduledAt,
		&job.ResultRef,
		&resultSummary,
		&errorPayload,
		&submittedAt,
		&startedAt,
		&endedAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if strings.TrimSpace(payload) != "" {
		job.Payload = json.RawMessage(payload)
	}
	if strings.TrimSpace(resultSummary) != "" {
		job.ResultSummary = json.RawMessage(resultSummary)
	}
	if strings.TrimSpace(errorPayload) != "" {
		job.ErrorPayload = json.RawMessage(errorPayload)
	}

	if retryMaxAttempts.Valid || retryInitialBackoff.Valid || retryMultiplier.Valid || retryMaxBackoff.Valid {
		rp := &RetryPolicy{}
		if retryMaxAttempts.Valid {
			rp.MaxAttempts = int(retryMaxAttempts.Int64)
		}
		if retryInitialBackoff.Valid {
			rp.InitialBackoff = retryInitialBackoff.String
		}
		if retryMultiplier.Valid {
			rp.Multiplier = retryMultiplier.Float64
		}
		if retryMaxBackoff.Valid {
			rp.MaxBackoff = retryMaxBackoff.String
		}
		job.RetryPolicy = rp
	}

	job.SubmittedAt, _ = time.Parse(time.RFC3339Nano, submittedAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if startedAt.Valid && startedAt.String != "" {
		ts, err := time.Parse(time.RFC3339Nano, startedAt.String)
		if err == nil {
			job.StartedAt = &ts
		}
	}
	if endedAt.Valid && endedAt.String != "" {
		ts, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err == nil {
			job.EndedAt = &ts
		}
	}
	if retryScheduledAt.Valid && retryScheduledAt.String != "" {
		ts, err := time.Parse(time.RFC3339Nano, retryScheduledAt.String)
		if err == nil {
			job.RetryScheduledAt = &ts
		}
	}
	return &job, nil
}

func normalizeJobLimit(limit int) int {
	if limit <= 0 {
		return defaultJobListLimit
	}
	if limit > maxJobListLimit {
		return maxJobListLimit
	}
	return limit
}

func nullableRetryMaxAttempts(policy *RetryPolicy) sql.NullInt64 {
	if policy == nil || policy.MaxAttempts <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(policy.MaxAttempts), Valid: true}
}

func nullableRetryMultiplier(policy *RetryPolicy) sql.NullFloat64 {
	if policy == nil || policy.Multiplier <= 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: policy.Multiplier, Valid: true}
}

func nullableRetryDuration(policy *RetryPolicy, get func(*RetryPolicy) string) sql.NullString {
	if policy == nil || get == nil {
		return sql.NullString{}
	}
	value := strings.TrimSpace(get(policy))
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

// IsNotFound reports whether err is sql.ErrNoRows.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsInvalidJobTransition reports whether err is an invalid job status transition.
func IsInvalidJobTransition(err error) bool {
	return errors.Is(err, ErrInvalidJobTransition)
}

// Package jobstore is the PostgreSQL-backed store of record for
// verification jobs and their match history.
package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/aerocristobal/label-verify/infrastructure/database"
	apperrors "github.com/aerocristobal/label-verify/infrastructure/errors"
	"github.com/aerocristobal/label-verify/internal/model"
)

// MaxRetries is the retry count at which the worker stops moving a failed
// job back to Pending and marks it Failed.
const MaxRetries = 3

// Store is the PostgreSQL-backed job store.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle as a job store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new job in the Pending state.
func (s *Store) Create(ctx context.Context, imageKey string, userID string) (*model.Job, error) {
	now := time.Now().UTC()
	job := &model.Job{
		ID:        uuid.NewString(),
		Status:    model.JobStatusPending,
		ImageKey:  imageKey,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO verification_jobs (id, status, image_key, user_id, created_at, updated_at, retry_count)
        VALUES ($1, $2, $3, $4, $5, $6, 0)
    `, job.ID, job.Status, job.ImageKey, nullableString(job.UserID), job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return nil, apperrors.DatabaseError("create_job", err)
	}
	return job, nil
}

// Get retrieves a job by ID. Returns nil, nil if not found.
func (s *Store) Get(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, status, image_key, user_id, created_at, updated_at,
               processing_started_at, processing_completed_at, retry_count,
               error, extracted_fields, verification_result
        FROM verification_jobs
        WHERE id = $1
    `, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.DatabaseError("get_job", err)
	}
	return job, nil
}

// SetStatus transitions a job to a new status, stamping the relevant
// timestamp: entering Processing sets processing_started_at, entering
// Completed or Failed sets processing_completed_at.
func (s *Store) SetStatus(ctx context.Context, id string, status model.JobStatus) error {
	now := time.Now().UTC()

	var query string
	var args []interface{}
	switch status {
	case model.JobStatusProcessing:
		query = `UPDATE verification_jobs SET status = $2, updated_at = $3, processing_started_at = $3 WHERE id = $1`
		args = []interface{}{id, status, now}
	case model.JobStatusCompleted, model.JobStatusFailed:
		query = `UPDATE verification_jobs SET status = $2, updated_at = $3, processing_completed_at = $3 WHERE id = $1`
		args = []interface{}{id, status, now}
	default:
		query = `UPDATE verification_jobs SET status = $2, updated_at = $3 WHERE id = $1`
		args = []interface{}{id, status, now}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.DatabaseError("set_status", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.NotFound("job", id)
	}
	return nil
}

// SetResult atomically records the terminal status, verification result,
// and/or error for a job.
func (s *Store) SetResult(ctx context.Context, id string, status model.JobStatus, result *model.VerificationResult, jobErr string) error {
	now := time.Now().UTC()

	var resultJSON []byte
	var err error
	if result != nil {
		resultJSON, err = json.Marshal(result)
		if err != nil {
			return apperrors.Internal("marshal verification result", err)
		}
	}

	res, err := s.db.ExecContext(ctx, `
        UPDATE verification_jobs
        SET status = $2, verification_result = $3, error = $4, updated_at = $5, processing_completed_at = $5
        WHERE id = $1
    `, id, status, nullableJSON(resultJSON), nullableString(jobErr), now)
	if err != nil {
		return apperrors.DatabaseError("set_result", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return apperrors.NotFound("job", id)
	}
	return nil
}

// SetExtractedFields records the vision-model output for a job.
func (s *Store) SetExtractedFields(ctx context.Context, id string, fields *model.ExtractedLabelFields) error {
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return apperrors.Internal("marshal extracted fields", err)
	}

	res, err := s.db.ExecContext(ctx, `
        UPDATE verification_jobs SET extracted_fields = $2, updated_at = $3 WHERE id = $1
    `, id, fieldsJSON, time.Now().UTC())
	if err != nil {
		return apperrors.DatabaseError("set_extracted_fields", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return apperrors.NotFound("job", id)
	}
	return nil
}

// IncrementRetry bumps retry_count and returns the new count.
func (s *Store) IncrementRetry(ctx context.Context, id string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
        UPDATE verification_jobs SET retry_count = retry_count + 1, updated_at = $2
        WHERE id = $1
        RETURNING retry_count
    `, id, time.Now().UTC())

	var count int
	if err := row.Scan(&count); err != nil {
		if err == sql.ErrNoRows {
			return 0, apperrors.NotFound("job", id)
		}
		return 0, apperrors.DatabaseError("increment_retry", err)
	}
	return count, nil
}

// ListPending returns up to limit Pending jobs ordered by created_at ascending.
func (s *Store) ListPending(ctx context.Context, limit int) ([]*model.Job, error) {
	limit = database.ValidateLimit(limit, 50, 500)

	rows, err := s.db.QueryContext(ctx, `
        SELECT id, status, image_key, user_id, created_at, updated_at,
               processing_started_at, processing_completed_at, retry_count,
               error, extracted_fields, verification_result
        FROM verification_jobs
        WHERE status = $1
        ORDER BY created_at ASC
        LIMIT $2
    `, model.JobStatusPending, limit)
	if err != nil {
		return nil, apperrors.DatabaseError("list_pending", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, apperrors.DatabaseError("list_pending_scan", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.DatabaseError("list_pending_iterate", err)
	}
	return jobs, nil
}

// RecordMatchHistory appends an audit row for the verification decision
// made on job id.
func (s *Store) RecordMatchHistory(ctx context.Context, entry model.MatchHistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO beverage_match_history (job_id, matched_beverage_id, match_type, match_confidence, abv_deviation, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, entry.JobID, entry.MatchedBeverageID, entry.MatchType, entry.MatchConfidence, entry.ABVDeviation, time.Now().UTC())
	if err != nil {
		return apperrors.DatabaseError("record_match_history", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*model.Job, error) {
	var (
		job                   model.Job
		userID                sql.NullString
		processingStartedAt   sql.NullTime
		processingCompletedAt sql.NullTime
		jobErr                sql.NullString
		extractedRaw          []byte
		resultRaw             []byte
	)

	if err := row.Scan(
		&job.ID, &job.Status, &job.ImageKey, &userID, &job.CreatedAt, &job.UpdatedAt,
		&processingStartedAt, &processingCompletedAt, &job.RetryCount,
		&jobErr, &extractedRaw, &resultRaw,
	); err != nil {
		return nil, err
	}

	if userID.Valid {
		job.UserID = userID.String
	}
	if processingStartedAt.Valid {
		t := processingStartedAt.Time
		job.ProcessingStartedAt = &t
	}
	if processingCompletedAt.Valid {
		t := processingCompletedAt.Time
		job.ProcessingCompletedAt = &t
	}
	if jobErr.Valid {
		job.Error = jobErr.String
	}
	if len(extractedRaw) > 0 {
		var fields model.ExtractedLabelFields
		if err := json.Unmarshal(extractedRaw, &fields); err == nil {
			job.ExtractedFields = &fields
		}
	}
	if len(resultRaw) > 0 {
		var result model.VerificationResult
		if err := json.Unmarshal(resultRaw, &result); err == nil {
			job.VerificationResult = &result
		}
	}

	return &job, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

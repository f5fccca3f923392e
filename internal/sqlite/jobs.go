// This file implements the fine-tuning job ledger of the catalog.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mesh-intelligence/freshset/pkg/types"
)

const selectJobColumns = `SELECT job_id, training_file_id, base_model, status, fine_tuned_model,
	trained_tokens, error, created_at, finished_at FROM jobs`

// SaveJob inserts or updates a fine-tuning job keyed by JobID and persists
// jobs.jsonl.
func (b *Backend) SaveJob(job *types.FineTuneJob) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrCatalogDetached
	}
	if job == nil || job.JobID == "" {
		return types.ErrInvalidID
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = types.JobCreated
	}

	var finished any
	if job.FinishedAt != nil {
		finished = job.FinishedAt.UTC().Format(time.RFC3339)
	}

	_, err := b.db.Exec(
		`INSERT INTO jobs (job_id, training_file_id, base_model, status, fine_tuned_model,
		   trained_tokens, error, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET
		   training_file_id = excluded.training_file_id, base_model = excluded.base_model,
		   status = excluded.status, fine_tuned_model = excluded.fine_tuned_model,
		   trained_tokens = excluded.trained_tokens, error = excluded.error,
		   finished_at = excluded.finished_at`,
		job.JobID, job.TrainingFileID, job.BaseModel, job.Status, job.FineTunedModel,
		job.TrainedTokens, job.Error, job.CreatedAt.UTC().Format(time.RFC3339), finished,
	)
	if err != nil {
		return fmt.Errorf("persisting job %s: %w", job.JobID, err)
	}

	if err := b.persistJobsLocked(); err != nil {
		return fmt.Errorf("persisting %s: %w", jobsJSONL, err)
	}
	return nil
}

// GetJob returns the job with the given ID.
func (b *Backend) GetJob(id string) (*types.FineTuneJob, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrCatalogDetached
	}
	if id == "" {
		return nil, types.ErrInvalidID
	}

	job, err := hydrateJob(b.db.QueryRow(selectJobColumns+" WHERE job_id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", id, err)
	}
	return job, nil
}

// ListJobs returns every recorded job, newest first.
func (b *Backend) ListJobs() ([]*types.FineTuneJob, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrCatalogDetached
	}
	return b.listJobsLocked()
}

func (b *Backend) listJobsLocked() ([]*types.FineTuneJob, error) {
	rows, err := b.db.Query(selectJobColumns + " ORDER BY created_at DESC, job_id DESC")
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var out []*types.FineTuneJob
	for rows.Next() {
		job, err := hydrateJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// persistJobsLocked rewrites jobs.jsonl from the table.
// The caller must hold b.mu.
func (b *Backend) persistJobsLocked() error {
	jobs, err := b.listJobsLocked()
	if err != nil {
		return err
	}
	records := make([]jobJSON, len(jobs))
	for i, j := range jobs {
		rec := jobJSON{
			JobID:          j.JobID,
			TrainingFileID: j.TrainingFileID,
			BaseModel:      j.BaseModel,
			Status:         j.Status,
			FineTunedModel: j.FineTunedModel,
			TrainedTokens:  j.TrainedTokens,
			Error:          j.Error,
			CreatedAt:      j.CreatedAt.UTC().Format(time.RFC3339),
		}
		if j.FinishedAt != nil {
			s := j.FinishedAt.UTC().Format(time.RFC3339)
			rec.FinishedAt = &s
		}
		records[i] = rec
	}
	raw, err := marshalRecords(records)
	if err != nil {
		return err
	}
	return writeRecords(filepath.Join(b.config.DataDir, jobsJSONL), raw)
}

// hydrateJob converts a row into a FineTuneJob.
func hydrateJob(row rowScanner) (*types.FineTuneJob, error) {
	var (
		j             types.FineTuneJob
		model, jobErr sql.NullString
		tokens        sql.NullInt64
		created       string
		finished      sql.NullString
	)
	if err := row.Scan(&j.JobID, &j.TrainingFileID, &j.BaseModel, &j.Status, &model,
		&tokens, &jobErr, &created, &finished); err != nil {
		return nil, err
	}
	j.FineTunedModel = model.String
	j.TrainedTokens = tokens.Int64
	j.Error = jobErr.String

	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", created, err)
	}
	j.CreatedAt = t
	if finished.Valid && finished.String != "" {
		ft, err := time.Parse(time.RFC3339, finished.String)
		if err != nil {
			return nil, fmt.Errorf("parsing finished_at %q: %w", finished.String, err)
		}
		j.FinishedAt = &ft
	}
	return &j, nil
}

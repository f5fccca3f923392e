package finetune

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mesh-intelligence/freshset/internal/paths"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// DefaultPollInterval is the pause between two status checks in Wait.
const DefaultPollInterval = 60 * time.Second

// API is the subset of the hosted API the manager uses. *Client satisfies it.
type API interface {
	UploadFile(ctx context.Context, path string) (*File, error)
	CreateJob(ctx context.Context, req JobRequest) (*Job, error)
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]Job, error)
	CancelJob(ctx context.Context, id string) (*Job, error)
}

// JobStore records jobs locally. *sqlite.Backend satisfies it.
type JobStore interface {
	SaveJob(job *types.FineTuneJob) error
	GetJob(id string) (*types.FineTuneJob, error)
	ListJobs() ([]*types.FineTuneJob, error)
}

// Manager runs the fine-tuning workflow: pick a training file, upload it,
// create a job, follow it to completion and publish the resulting model id.
type Manager struct {
	API          API
	Store        JobStore // optional
	Layout       paths.Layout
	EnvFile      string // defaults to .env.local under Layout.Root
	PollInterval time.Duration
	Logger       *slog.Logger
}

// TrainingFile returns the first existing candidate among the combined,
// real-image and synthetic training files.
func (m *Manager) TrainingFile() (string, error) {
	for _, p := range m.Layout.TrainingFiles() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", types.ErrNoTrainingData
}

// Upload uploads the selected training file and returns its id.
func (m *Manager) Upload(ctx context.Context) (string, error) {
	path, err := m.TrainingFile()
	if err != nil {
		return "", err
	}
	m.logger().Info("uploading training file", "path", path)
	f, err := m.API.UploadFile(ctx, path)
	if err != nil {
		return "", err
	}
	m.logger().Info("training file uploaded", "file_id", f.ID)
	return f.ID, nil
}

// Create uploads the training file and starts a job on model.
func (m *Manager) Create(ctx context.Context, model string) (*types.FineTuneJob, error) {
	fileID, err := m.Upload(ctx)
	if err != nil {
		return nil, err
	}
	req := NewJobRequest(fileID, model)
	m.logger().Info("creating fine-tuning job", "model", req.Model)
	job, err := m.API.CreateJob(ctx, req)
	if err != nil {
		return nil, err
	}
	local := job.Local()
	if local.TrainingFileID == "" {
		local.TrainingFileID = fileID
	}
	if local.BaseModel == "" {
		local.BaseModel = req.Model
	}
	if err := m.save(local); err != nil {
		return local, err
	}
	m.logger().Info("fine-tuning job created", "job_id", local.JobID)
	return local, nil
}

// Status fetches the job and refreshes the local record.
func (m *Manager) Status(ctx context.Context, id string) (*types.FineTuneJob, error) {
	job, err := m.API.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	local := job.Local()
	return local, m.save(local)
}

// List returns the most recent jobs reported by the API.
func (m *Manager) List(ctx context.Context) ([]*types.FineTuneJob, error) {
	jobs, err := m.API.ListJobs(ctx, DefaultListLimit)
	if err != nil {
		return nil, err
	}
	out := make([]*types.FineTuneJob, 0, len(jobs))
	for i := range jobs {
		out = append(out, jobs[i].Local())
	}
	return out, nil
}

// Cancel cancels a job and records its new status.
func (m *Manager) Cancel(ctx context.Context, id string) (*types.FineTuneJob, error) {
	job, err := m.API.CancelJob(ctx, id)
	if err != nil {
		return nil, err
	}
	local := job.Local()
	return local, m.save(local)
}

// Wait polls the job until it reaches a terminal status.
func (m *Manager) Wait(ctx context.Context, id string) (*types.FineTuneJob, error) {
	interval := m.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	m.logger().Info("waiting for job", "job_id", id, "interval", interval)
	for {
		job, err := m.Status(ctx, id)
		if err != nil {
			return nil, err
		}
		m.logger().Info("job status", "job_id", id, "status", job.Status)
		if job.Terminal() {
			if job.Error != "" {
				m.logger().Warn("job finished with error", "job_id", id, "error", job.Error)
			}
			return job, nil
		}

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return job, ctx.Err()
		case <-t.C:
		}
	}
}

// CompleteFlow uploads, creates a job, waits for it and, on success, writes
// the fine-tuned model id into the env file.
func (m *Manager) CompleteFlow(ctx context.Context, model string) (*types.FineTuneJob, error) {
	job, err := m.Create(ctx, model)
	if err != nil {
		return nil, err
	}
	job, err = m.Wait(ctx, job.JobID)
	if err != nil {
		return job, err
	}
	if job.Status != types.JobSucceeded || job.FineTunedModel == "" {
		return job, fmt.Errorf("fine-tuning job %s ended with status %s", job.JobID, job.Status)
	}
	if err := UpdateEnvFile(m.envFile(), job.FineTunedModel); err != nil {
		return job, err
	}
	m.logger().Info("fine-tuned model saved", "model", job.FineTunedModel, "env_file", m.envFile())
	return job, nil
}

// Publish writes a succeeded job's model into the env file.
func (m *Manager) Publish(job *types.FineTuneJob) error {
	if job.Status != types.JobSucceeded || job.FineTunedModel == "" {
		return nil
	}
	return UpdateEnvFile(m.envFile(), job.FineTunedModel)
}

func (m *Manager) envFile() string {
	if m.EnvFile != "" {
		return m.EnvFile
	}
	return m.Layout.EnvFile()
}

// save upserts the job, keeping fields the API omits.
func (m *Manager) save(job *types.FineTuneJob) error {
	if m.Store == nil {
		return nil
	}
	if prev, err := m.Store.GetJob(job.JobID); err == nil {
		if job.TrainingFileID == "" {
			job.TrainingFileID = prev.TrainingFileID
		}
		if job.BaseModel == "" {
			job.BaseModel = prev.BaseModel
		}
	} else if !errors.Is(err, types.ErrNotFound) {
		return err
	}
	return m.Store.SaveJob(job)
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

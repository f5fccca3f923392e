package types

import "time"

// Fine-tuning job statuses reported by the hosted API.
const (
	JobValidatingFiles     = "validating_files"
	JobQueued              = "queued"
	JobRunning             = "running"
	JobSucceeded           = "succeeded"
	JobFailed              = "failed"
	JobCancelled           = "cancelled"
	JobInvalidTrainingFile = "invalid_training_file"
	JobCreated             = "created"
)

// terminalJobStatuses ends a wait loop.
var terminalJobStatuses = map[string]bool{
	JobSucceeded:           true,
	JobFailed:              true,
	JobCancelled:           true,
	JobInvalidTrainingFile: true,
}

// FineTuneJob is the local view of a hosted fine-tuning job.
type FineTuneJob struct {
	JobID          string     `json:"job_id"`                     // Job ID assigned by the API.
	TrainingFileID string     `json:"training_file_id"`           // Uploaded training file ID.
	BaseModel      string     `json:"base_model"`                 // Model being fine-tuned.
	Status         string     `json:"status"`                     // Last observed status.
	FineTunedModel string     `json:"fine_tuned_model,omitempty"` // Resulting model name once succeeded.
	TrainedTokens  int64      `json:"trained_tokens,omitempty"`   // Tokens billed for training, if reported.
	Error          string     `json:"error,omitempty"`            // Error message for failed jobs.
	CreatedAt      time.Time  `json:"created_at"`                 // Creation time reported by the API.
	FinishedAt     *time.Time `json:"finished_at,omitempty"`      // Finish time, nil while running.
}

// Terminal reports whether the job has stopped changing.
func (j *FineTuneJob) Terminal() bool {
	return terminalJobStatuses[j.Status]
}

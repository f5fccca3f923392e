package sqlite

// JSON record structures that mirror the JSONL file format.

// imageJSON represents an indexed sample in images.jsonl.
type imageJSON struct {
	ImageID   string `json:"image_id"`
	Produce   string `json:"produce"`
	State     string `json:"state"`
	Path      string `json:"path"`
	Source    string `json:"source"`
	SHA256    string `json:"sha256"`
	CreatedAt string `json:"created_at"`
}

// jobJSON represents a fine-tuning job in jobs.jsonl.
type jobJSON struct {
	JobID          string  `json:"job_id"`
	TrainingFileID string  `json:"training_file_id"`
	BaseModel      string  `json:"base_model"`
	Status         string  `json:"status"`
	FineTunedModel string  `json:"fine_tuned_model"`
	TrainedTokens  int64   `json:"trained_tokens"`
	Error          string  `json:"error"`
	CreatedAt      string  `json:"created_at"`
	FinishedAt     *string `json:"finished_at"`
}

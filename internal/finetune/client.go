package finetune

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/freshset/pkg/types"
)

// Job creation defaults.
const (
	DefaultBaseModel              = "gpt-4o-2024-08-06"
	DefaultSuffix                 = "fruitai-freshness"
	DefaultEpochs                 = 3
	DefaultBatchSize              = 1
	DefaultLearningRateMultiplier = 0.1
	DefaultListLimit              = 50
)

// Client calls the OpenAI files and fine-tuning endpoints.
type Client struct {
	// BaseURL defaults to "https://api.openai.com", or OPENAI_BASE_URL when set.
	BaseURL string

	APIKey     string
	HTTPClient *http.Client
}

// NewClient returns a client authenticated with OPENAI_API_KEY. It returns
// types.ErrAPIKeyMissing when the variable is unset.
func NewClient() (*Client, error) {
	key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if key == "" {
		return nil, types.ErrAPIKeyMissing
	}
	return &Client{APIKey: key}, nil
}

// File is an uploaded file.
type File struct {
	ID       string `json:"id"`
	Bytes    int64  `json:"bytes"`
	Filename string `json:"filename"`
	Purpose  string `json:"purpose"`
}

// Hyperparameters of a fine-tuning job.
type Hyperparameters struct {
	NEpochs                int     `json:"n_epochs"`
	BatchSize              int     `json:"batch_size"`
	LearningRateMultiplier float64 `json:"learning_rate_multiplier"`
}

// JobRequest is the body of a job creation call.
type JobRequest struct {
	TrainingFile    string          `json:"training_file"`
	Model           string          `json:"model"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	Suffix          string          `json:"suffix,omitempty"`
}

// NewJobRequest returns a request with the default hyperparameters and
// suffix. An empty model selects DefaultBaseModel.
func NewJobRequest(fileID, model string) JobRequest {
	if model == "" {
		model = DefaultBaseModel
	}
	return JobRequest{
		TrainingFile: fileID,
		Model:        model,
		Hyperparameters: Hyperparameters{
			NEpochs:                DefaultEpochs,
			BatchSize:              DefaultBatchSize,
			LearningRateMultiplier: DefaultLearningRateMultiplier,
		},
		Suffix: DefaultSuffix,
	}
}

// JobError describes why a job failed.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
}

// Job is a fine-tuning job as reported by the API.
type Job struct {
	ID             string    `json:"id"`
	Model          string    `json:"model"`
	Status         string    `json:"status"`
	FineTunedModel *string   `json:"fine_tuned_model"`
	CreatedAt      int64     `json:"created_at"`
	FinishedAt     *int64    `json:"finished_at"`
	TrainingFile   string    `json:"training_file"`
	ResultFiles    []string  `json:"result_files"`
	TrainedTokens  *int64    `json:"trained_tokens"`
	Error          *JobError `json:"error"`
}

// Local converts the wire job into the catalog representation.
func (j *Job) Local() *types.FineTuneJob {
	out := &types.FineTuneJob{
		JobID:          j.ID,
		TrainingFileID: j.TrainingFile,
		BaseModel:      j.Model,
		Status:         j.Status,
		CreatedAt:      time.Unix(j.CreatedAt, 0).UTC(),
	}
	if j.FineTunedModel != nil {
		out.FineTunedModel = *j.FineTunedModel
	}
	if j.TrainedTokens != nil {
		out.TrainedTokens = *j.TrainedTokens
	}
	if j.FinishedAt != nil && *j.FinishedAt > 0 {
		t := time.Unix(*j.FinishedAt, 0).UTC()
		out.FinishedAt = &t
	}
	if j.Error != nil && (j.Error.Message != "" || j.Error.Code != "") {
		out.Error = strings.TrimSpace(j.Error.Code + " " + j.Error.Message)
	}
	return out
}

// UploadFile uploads a JSONL training file with purpose fine-tune.
func (c *Client) UploadFile(ctx context.Context, path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("openai: open training file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("purpose", "fine-tune"); err != nil {
		return nil, err
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("openai: read training file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var out File
	if err := c.do(ctx, http.MethodPost, "/v1/files", mw.FormDataContentType(), &body, &out); err != nil {
		return nil, fmt.Errorf("openai: upload file failed: %w", err)
	}
	return &out, nil
}

// CreateJob starts a fine-tuning job.
func (c *Client) CreateJob(ctx context.Context, req JobRequest) (*Job, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}
	var out Job
	if err := c.do(ctx, http.MethodPost, "/v1/fine_tuning/jobs", "application/json", bytes.NewReader(b), &out); err != nil {
		return nil, fmt.Errorf("openai: create job failed: %w", err)
	}
	return &out, nil
}

// GetJob retrieves a job.
func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	var out Job
	if err := c.do(ctx, http.MethodGet, "/v1/fine_tuning/jobs/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, fmt.Errorf("openai: retrieve job %s failed: %w", id, err)
	}
	return &out, nil
}

// ListJobs lists the most recent jobs.
func (c *Client) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var out struct {
		Data []Job `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/fine_tuning/jobs?limit="+strconv.Itoa(limit), "", nil, &out); err != nil {
		return nil, fmt.Errorf("openai: list jobs failed: %w", err)
	}
	return out.Data, nil
}

// CancelJob cancels a running job.
func (c *Client) CancelJob(ctx context.Context, id string) (*Job, error) {
	var out Job
	if err := c.do(ctx, http.MethodPost, "/v1/fine_tuning/jobs/"+url.PathEscape(id)+"/cancel", "", nil, &out); err != nil {
		return nil, fmt.Errorf("openai: cancel job %s failed: %w", id, err)
	}
	return &out, nil
}

// do sends one request and decodes a 2xx JSON response into out.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	if strings.TrimSpace(c.APIKey) == "" {
		return types.ErrAPIKeyMissing
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 2_000_000))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *Client) baseURL() string {
	if s := strings.TrimSpace(c.BaseURL); s != "" {
		return strings.TrimRight(s, "/")
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "https://api.openai.com"
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 5 * time.Minute}
}

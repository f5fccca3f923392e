package types

import "errors"

// Catalog indexes collected samples and fine-tuning jobs.
// Callers attach to a backend, use the index, and detach when done.
type Catalog interface {
	// Attach connects the Catalog to the backend described by config.
	// Creates the DataDir if it does not exist. Returns ErrAlreadyAttached
	// if called while already attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	Detach() error

	// AddImage indexes a sample. A new UUID v7 is assigned when ImageID is
	// empty. Returns the ID used.
	AddImage(entry *ImageEntry) (string, error)

	// AddImages indexes entries in one transaction and persists once.
	// An invalid entry rejects the whole batch.
	AddImages(entries []*ImageEntry) error

	// GetImage returns the sample with the given ID or ErrNotFound.
	GetImage(id string) (*ImageEntry, error)

	// ListImages returns samples matching the filter. Recognized keys are
	// "produce", "state" and "source"; an empty filter returns every sample.
	ListImages(filter map[string]string) ([]*ImageEntry, error)

	// DeleteImage removes the sample with the given ID or returns ErrNotFound.
	DeleteImage(id string) error

	// Summary counts indexed samples per state per produce.
	Summary() (Summary, error)

	// SaveJob inserts or updates a fine-tuning job keyed by JobID.
	SaveJob(job *FineTuneJob) error

	// GetJob returns the job with the given ID or ErrNotFound.
	GetJob(id string) (*FineTuneJob, error)

	// ListJobs returns every recorded job, newest first.
	ListJobs() ([]*FineTuneJob, error)
}

// Catalog lifecycle errors.
var (
	ErrCatalogDetached = errors.New("catalog is detached")
	ErrAlreadyAttached = errors.New("catalog is already attached")
)

// Entity errors.
var (
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidID       = errors.New("invalid entity ID")
	ErrInvalidState    = errors.New("invalid state value")
	ErrInvalidProduce  = errors.New("invalid produce name")
	ErrInvalidImage    = errors.New("invalid or missing image")
	ErrInvalidFilter   = errors.New("invalid filter key")
	ErrAPIKeyMissing   = errors.New("OPENAI_API_KEY environment variable is required")
	ErrNoTrainingData  = errors.New("no training data file found")
	ErrEmptyDataset    = errors.New("dataset contains no images")
	ErrModelNotTrained = errors.New("model has not been trained")
)

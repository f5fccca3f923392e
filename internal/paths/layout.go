package paths

import "path/filepath"

// Dataset directory names under a workspace root.
const (
	CollectDirName   = "global-training-data"
	RawDirName       = "real-training-data"
	OrganizedDirName = "organized"
	UnifiedDirName   = "unified"
	ModelDirName     = "models"
)

// Well-known file names inside the dataset directories.
const (
	DatasetMetadataFile = "dataset_metadata.json"
	OrganizedMetaFile   = "metadata.json"
	UnifiedSummaryFile  = "summary.json"
	TrainingFile        = "openai_training_data.jsonl"
	RealImagesFile      = "openai_training_data_with_real_images.jsonl"
	CombinedFile        = "openai_training_data_combined.jsonl"
	EnvLocalFile        = ".env.local"
)

// Layout locates every dataset artifact relative to one workspace root.
// Models, when set, moves the model directory out of the workspace.
type Layout struct {
	Root   string
	Models string
}

// NewLayout returns a Layout rooted at root. An empty root means the
// current directory.
func NewLayout(root string) Layout {
	if root == "" {
		root = "."
	}
	return Layout{Root: root}
}

// CollectDir holds generated and downloaded per-image records.
func (l Layout) CollectDir() string { return filepath.Join(l.Root, CollectDirName) }

// RawDir holds third-party datasets as downloaded.
func (l Layout) RawDir() string { return filepath.Join(l.Root, RawDirName) }

// OrganizedDir holds images sorted into <quality>/<produce>.
func (l Layout) OrganizedDir() string { return filepath.Join(l.RawDir(), OrganizedDirName) }

// UnifiedDir holds the fixed-category copy of the organized tree.
func (l Layout) UnifiedDir() string { return filepath.Join(l.RawDir(), UnifiedDirName) }

// ModelDir holds trained classifier files.
func (l Layout) ModelDir() string {
	if l.Models != "" {
		return l.Models
	}
	return filepath.Join(l.Root, ModelDirName)
}

// TrainingFiles returns the fine-tuning JSONL candidates in preference order.
func (l Layout) TrainingFiles() []string {
	dir := l.CollectDir()
	return []string{
		filepath.Join(dir, CombinedFile),
		filepath.Join(dir, RealImagesFile),
		filepath.Join(dir, TrainingFile),
	}
}

// EnvFile is the env file that receives the fine-tuned model id.
func (l Layout) EnvFile() string { return filepath.Join(l.Root, EnvLocalFile) }

package collect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/freshset/pkg/types"
)

// Record sources written into metadata.source and the catalog.
const (
	SourceGenerated  = "global_dataset_collection"
	SourceDownloaded = "real_image_collection"
)

// RecordPath returns <root>/<state>/<produce>/<produce>_<state>_<NN>.json.
func RecordPath(root, produce, state string, index int) string {
	return filepath.Join(root, state, produce, fmt.Sprintf("%s_%s_%02d.json", produce, state, index))
}

// WriteRecord validates rec and writes it as indented JSON, creating parent
// directories.
func WriteRecord(path string, rec *types.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating record dir: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadRecord reads and validates a record file.
func ReadRecord(path string) (*types.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec types.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &rec, nil
}

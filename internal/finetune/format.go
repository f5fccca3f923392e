package finetune

import (
	"log/slog"

	"github.com/mesh-intelligence/freshset/internal/collect"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// Lister lists indexed samples. *sqlite.Backend satisfies it.
type Lister interface {
	ListImages(filter map[string]string) ([]*types.ImageEntry, error)
}

// FormatFromCatalog builds one training example per indexed record from
// source and writes them to out. Unreadable records are logged and skipped.
// It returns the number of examples written.
func FormatFromCatalog(idx Lister, source, out string, logger *slog.Logger) (int, error) {
	entries, err := idx.ListImages(map[string]string{"source": source})
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, types.ErrEmptyDataset
	}

	examples := make([]*types.TrainingExample, 0, len(entries))
	for _, e := range entries {
		rec, err := collect.ReadRecord(e.Path)
		if err != nil {
			logger.Warn("record skipped", "path", e.Path, "error", err)
			continue
		}
		ex, err := BuildExample(rec)
		if err != nil {
			logger.Warn("record skipped", "path", e.Path, "error", err)
			continue
		}
		examples = append(examples, ex)
	}
	if err := WriteJSONL(out, examples); err != nil {
		return 0, err
	}
	logger.Info("training file written", "path", out, "examples", len(examples))
	return len(examples), nil
}

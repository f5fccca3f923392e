package collect

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mesh-intelligence/freshset/internal/paths"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// BuildMetadata summarizes a collected dataset.
func BuildMetadata(produce []Produce, entries []*types.ImageEntry, perState int, created time.Time) *types.DatasetMetadata {
	stats := &types.CollectionStats{TotalSamples: len(entries)}
	for _, e := range entries {
		switch e.State {
		case types.StateFresh:
			stats.FreshSamples++
		case types.StateRotten:
			stats.RottenSamples++
		}
	}
	stats.BalanceRatio = fmt.Sprintf("%d:%d (fresh:rotten)", stats.FreshSamples, stats.RottenSamples)

	return &types.DatasetMetadata{
		DatasetInfo: types.DatasetInfo{
			Name:              "Global Fruits and Vegetables Freshness Dataset",
			Version:           "1.0.0",
			Created:           created.Format(time.DateOnly),
			Description:       "Dataset of fresh and rotten fruits and vegetables from around the world",
			TotalProduces:     len(produce),
			TotalImages:       len(entries),
			ImagesPerCategory: perState,
			Categories:        append([]string(nil), types.States...),
			Purpose:           "Fine-tuning for freshness classification",
		},
		QualityLabels:        types.QualityLabels,
		ProduceCategories:    Categories(produce),
		RegionalDistribution: RegionalDistribution(produce),
		CollectionStats:      stats,
	}
}

// WriteMetadata writes dataset_metadata.json under root.
func WriteMetadata(root string, md *types.DatasetMetadata) (string, error) {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(root, paths.DatasetMetadataFile)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

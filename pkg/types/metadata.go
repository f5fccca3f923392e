package types

// Summary counts samples per state per produce.
type Summary struct {
	TotalImages int                       `json:"total_images"`
	Structure   map[string]map[string]int `json:"structure"`
	Created     string                    `json:"created"`
}

// Count returns the number of samples in the given state.
func (s Summary) Count(state string) int {
	total := 0
	for _, n := range s.Structure[state] {
		total += n
	}
	return total
}

// DatasetInfo is the header block of a dataset metadata file.
type DatasetInfo struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	Created           string   `json:"created"`
	Description       string   `json:"description"`
	TotalProduces     int      `json:"total_produces,omitempty"`
	TotalImages       int      `json:"total_images"`
	ImagesPerCategory int      `json:"images_per_category,omitempty"`
	Classes           int      `json:"classes,omitempty"`
	Categories        []string `json:"categories,omitempty"`
	FruitsVegetables  []string `json:"fruits_vegetables,omitempty"`
	Purpose           string   `json:"purpose,omitempty"`
}

// CollectionStats summarizes the balance of a collected dataset.
type CollectionStats struct {
	TotalSamples  int    `json:"total_samples"`
	FreshSamples  int    `json:"fresh_samples"`
	RottenSamples int    `json:"rotten_samples"`
	BalanceRatio  string `json:"balance_ratio"`
}

// DatasetMetadata is written next to a collected or organized dataset.
type DatasetMetadata struct {
	DatasetInfo          DatasetInfo               `json:"dataset_info"`
	Statistics           map[string]map[string]int `json:"statistics,omitempty"`
	QualityLabels        map[string]int            `json:"quality_labels,omitempty"`
	FruitLabels          map[string]int            `json:"fruit_labels,omitempty"`
	ProduceCategories    map[string][]string       `json:"produce_categories,omitempty"`
	RegionalDistribution map[string][]string       `json:"regional_distribution,omitempty"`
	CollectionStats      *CollectionStats          `json:"collection_stats,omitempty"`
}

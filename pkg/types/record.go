package types

import (
	"strings"
	"time"
)

// Produce states. Every sample is labelled with exactly one of these.
const (
	StateFresh  = "fresh"
	StateRotten = "rotten"
)

// States lists the produce states in directory order.
var States = []string{StateFresh, StateRotten}

// Recommendations attached to a classified sample.
const (
	RecommendBuy   = "buy"
	RecommendAvoid = "avoid"
)

// QualityLabels maps a state to its binary class label.
var QualityLabels = map[string]int{
	StateFresh:  1,
	StateRotten: 0,
}

// ValidState reports whether s is a recognized produce state.
func ValidState(s string) bool {
	return s == StateFresh || s == StateRotten
}

// RecommendationFor returns the default recommendation for a state.
func RecommendationFor(state string) string {
	if state == StateFresh {
		return RecommendBuy
	}
	return RecommendAvoid
}

// DisplayName turns a produce key such as "bell_pepper" into "Bell Pepper".
func DisplayName(produce string) string {
	words := strings.Fields(strings.ReplaceAll(produce, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Characteristics is the free-text description of a sample.
type Characteristics struct {
	Color     string `json:"color"`
	Texture   string `json:"texture"`
	Blemishes string `json:"blemishes"`
	Ripeness  string `json:"ripeness"`
	Smell     string `json:"smell,omitempty"`
	Firmness  string `json:"firmness,omitempty"`
}

// RecordMetadata describes where a sample came from.
type RecordMetadata struct {
	CollectionDate  string `json:"collection_date"`
	Source          string `json:"source"`
	ImageSource     string `json:"image_source,omitempty"`
	QualityVerified bool   `json:"quality_verified"`
	HasRealImage    bool   `json:"has_real_image"`
	Region          string `json:"region,omitempty"`
}

// Record is the per-image JSON file written by the collectors.
type Record struct {
	Produce         string          `json:"produce"`
	State           string          `json:"state"`
	Index           int             `json:"index"`
	ImageBase64     string          `json:"image_base64"`
	Characteristics Characteristics `json:"characteristics"`
	FreshnessScore  int             `json:"freshness_score"`
	Confidence      int             `json:"confidence"`
	Recommendation  string          `json:"recommendation"`
	Details         string          `json:"details"`
	Metadata        RecordMetadata  `json:"metadata"`
}

// Validate checks the key-presence invariants of a record and clamps the
// score fields into 0..100.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Produce) == "" {
		return ErrInvalidProduce
	}
	if !ValidState(r.State) {
		return ErrInvalidState
	}
	if r.ImageBase64 == "" {
		return ErrInvalidImage
	}
	r.FreshnessScore = clampPercent(r.FreshnessScore)
	r.Confidence = clampPercent(r.Confidence)
	if r.Recommendation == "" {
		r.Recommendation = RecommendationFor(r.State)
	}
	return nil
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ImageEntry is a catalog row describing one sample on disk.
type ImageEntry struct {
	ImageID   string    // UUID v7, generated on insert.
	Produce   string    // Produce key, e.g. "apple".
	State     string    // StateFresh or StateRotten.
	Path      string    // Record or image file path.
	Source    string    // Collector or dataset name.
	SHA256    string    // Content hash of the encoded image.
	CreatedAt time.Time // Timestamp of insertion.
}

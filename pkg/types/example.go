package types

// Chat roles used in training examples.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Content part types.
const (
	PartText     = "text"
	PartImageURL = "image_url"
)

// ImageURL is the image reference inside a content part.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ContentPart is one element of a multi-part user message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// Message is one chat turn. Content holds either a string or a
// []ContentPart; both marshal to the wire format the fine-tuning API
// expects.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// TrainingExample is one line of a fine-tuning JSONL file.
type TrainingExample struct {
	Messages []Message `json:"messages"`
}

// Analysis is the assistant answer encoded into a training example.
type Analysis struct {
	Item            string          `json:"item"`
	Classification  string          `json:"classification"`
	Freshness       int             `json:"freshness"`
	Recommendation  string          `json:"recommendation"`
	Confidence      int             `json:"confidence"`
	Characteristics Characteristics `json:"characteristics"`
	Details         string          `json:"details"`
}

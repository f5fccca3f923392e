// Package finetune turns produce records into chat training examples and
// drives hosted fine-tuning jobs through the OpenAI REST API.
package finetune

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/freshset/pkg/types"
)

// SystemPrompt is the system turn of every training example.
const SystemPrompt = "You are an expert fruit and vegetable freshness analyzer. Classify the image as either 'fresh' or 'rotten' and provide detailed analysis in JSON format."

// ErrMalformedExample is returned when an example lacks the expected turns.
var ErrMalformedExample = errors.New("malformed training example")

// BuildExample converts a validated record into a training example. The
// assistant turn is the JSON-encoded analysis.
func BuildExample(rec *types.Record) (*types.TrainingExample, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	answer, err := json.Marshal(types.Analysis{
		Item:            types.DisplayName(rec.Produce),
		Classification:  rec.State,
		Freshness:       rec.FreshnessScore,
		Recommendation:  rec.Recommendation,
		Confidence:      rec.Confidence,
		Characteristics: rec.Characteristics,
		Details:         rec.Details,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding analysis: %w", err)
	}

	return &types.TrainingExample{Messages: []types.Message{
		{Role: types.RoleSystem, Content: SystemPrompt},
		{Role: types.RoleUser, Content: []types.ContentPart{
			{
				Type: types.PartText,
				Text: fmt.Sprintf("Analyze this %s for freshness and provide classification.", strings.ReplaceAll(rec.Produce, "_", " ")),
			},
			{
				Type:     types.PartImageURL,
				ImageURL: &types.ImageURL{URL: rec.ImageBase64, Detail: "high"},
			},
		}},
		{Role: types.RoleAssistant, Content: string(answer)},
	}}, nil
}

// Analysis decodes the assistant turn of an example.
func Analysis(ex *types.TrainingExample) (*types.Analysis, error) {
	for _, m := range ex.Messages {
		if m.Role != types.RoleAssistant {
			continue
		}
		s, ok := m.Content.(string)
		if !ok {
			return nil, fmt.Errorf("%w: assistant content is not a string", ErrMalformedExample)
		}
		var a types.Analysis
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedExample, err)
		}
		return &a, nil
	}
	return nil, fmt.Errorf("%w: no assistant turn", ErrMalformedExample)
}

// Classification returns the state an example is labelled with.
func Classification(ex *types.TrainingExample) (string, error) {
	a, err := Analysis(ex)
	if err != nil {
		return "", err
	}
	if !types.ValidState(a.Classification) {
		return "", fmt.Errorf("%w: %q", types.ErrInvalidState, a.Classification)
	}
	return a.Classification, nil
}

package train

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/mesh-intelligence/freshset/internal/imageproc"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// Model file names inside a model directory.
const (
	WeightsFile = "model.msgpack"
	InfoFile    = "model_info.json"
)

// Architecture describes the fixed backbone and head.
const Architecture = "hsv-histogram+rgb-stats backbone, dense relu head, sigmoid output"

const weightsVersion = 1

// Classes lists the class names by label.
var Classes = []string{types.StateRotten, types.StateFresh}

// ErrIncompatibleModel is returned when a weights file does not match the
// current feature extractor.
var ErrIncompatibleModel = errors.New("model weights do not match the feature extractor")

// Info is written next to the weights as model_info.json.
type Info struct {
	Architecture string   `json:"architecture"`
	InputSize    [2]int   `json:"input_size"`
	FeatureSize  int      `json:"feature_size"`
	Hidden       int      `json:"hidden_units"`
	Classes      []string `json:"classes"`
	Produce      []string `json:"produce,omitempty"`
	TrainSamples int      `json:"train_samples"`
	ValSamples   int      `json:"validation_samples"`
	Epochs       int      `json:"epochs"`
	Metrics      Metrics  `json:"validation_metrics"`
	Created      string   `json:"created"`
}

// Model is a trained freshness classifier.
type Model struct {
	net  *network
	Info Info
}

// Prediction is the classifier output for one image.
type Prediction struct {
	Probability    float64 `json:"probability"`
	Classification string  `json:"classification"`
	Freshness      int     `json:"freshness"`
	Confidence     int     `json:"confidence"`
	Recommendation string  `json:"recommendation"`
}

// Predict classifies img. Probability is the likelihood of the fresh class.
func (m *Model) Predict(img image.Image) Prediction {
	_, p := m.net.forward(m.net.matrix([][]float64{Features(img)}))
	return newPrediction(p[0])
}

// PredictBytes decodes an encoded image and classifies it.
func (m *Model) PredictBytes(data []byte) (Prediction, error) {
	img, _, err := imageproc.Decode(data)
	if err != nil {
		return Prediction{}, err
	}
	return m.Predict(img), nil
}

// PredictFile decodes the image at path and classifies it.
func (m *Model) PredictFile(path string) (Prediction, error) {
	img, err := imageproc.DecodeFile(path)
	if err != nil {
		return Prediction{}, err
	}
	return m.Predict(img), nil
}

func newPrediction(p float64) Prediction {
	state := types.StateRotten
	if p >= 0.5 {
		state = types.StateFresh
	}
	return Prediction{
		Probability:    p,
		Classification: state,
		Freshness:      int(math.Round(p * 100)),
		Confidence:     int(math.Round(math.Max(p, 1-p) * 100)),
		Recommendation: types.RecommendationFor(state),
	}
}

// weightsFile is the msgpack layout of model.msgpack. Matrices are stored
// row-major.
type weightsFile struct {
	Version int       `msgpack:"version"`
	Inputs  int       `msgpack:"inputs"`
	Hidden  int       `msgpack:"hidden"`
	Mean    []float64 `msgpack:"mean"`
	Std     []float64 `msgpack:"std"`
	W1      []float64 `msgpack:"w1"`
	B1      []float64 `msgpack:"b1"`
	W2      []float64 `msgpack:"w2"`
	B2      float64   `msgpack:"b2"`
}

// Save writes model.msgpack and model_info.json into dir.
func (m *Model) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating model dir: %w", err)
	}
	wf := weightsFile{
		Version: weightsVersion,
		Inputs:  m.net.inputs(),
		Hidden:  m.net.hidden(),
		Mean:    m.net.mean,
		Std:     m.net.std,
		W1:      m.net.w1.RawMatrix().Data,
		B1:      m.net.b1.RawMatrix().Data,
		W2:      m.net.w2.RawMatrix().Data,
		B2:      m.net.b2.At(0, 0),
	}
	raw, err := msgpack.Marshal(&wf)
	if err != nil {
		return fmt.Errorf("encoding weights: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, WeightsFile), raw, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", WeightsFile, err)
	}

	info, err := json.MarshalIndent(m.Info, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding model info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, InfoFile), append(info, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", InfoFile, err)
	}
	return nil
}

// Load reads a model saved by Save.
func Load(dir string) (*Model, error) {
	raw, err := os.ReadFile(filepath.Join(dir, WeightsFile))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", WeightsFile, err)
	}
	var wf weightsFile
	if err := msgpack.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("decoding weights: %w", err)
	}
	if wf.Version != weightsVersion || wf.Inputs != FeatureSize || wf.Hidden <= 0 ||
		len(wf.Mean) != wf.Inputs || len(wf.Std) != wf.Inputs ||
		len(wf.W1) != wf.Inputs*wf.Hidden || len(wf.B1) != wf.Hidden || len(wf.W2) != wf.Hidden {
		return nil, ErrIncompatibleModel
	}

	m := &Model{net: &network{
		mean: wf.Mean,
		std:  wf.Std,
		w1:   mat.NewDense(wf.Inputs, wf.Hidden, wf.W1),
		b1:   mat.NewDense(1, wf.Hidden, wf.B1),
		w2:   mat.NewDense(wf.Hidden, 1, wf.W2),
		b2:   mat.NewDense(1, 1, []float64{wf.B2}),
	}}

	info, err := os.ReadFile(filepath.Join(dir, InfoFile))
	switch {
	case err == nil:
		if err := json.Unmarshal(info, &m.Info); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", InfoFile, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading %s: %w", InfoFile, err)
	}
	return m, nil
}

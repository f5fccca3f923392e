package train

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/freshset/internal/imageproc"
	"github.com/mesh-intelligence/freshset/internal/logging"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

func solid(c color.RGBA) *image.RGBA {
	return solidN(c, 40)
}

func solidN(c color.RGBA, n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func freshColor(i int) color.RGBA {
	return color.RGBA{R: uint8(40 + i*3), G: uint8(200 - i*2), B: 40, A: 255}
}

func rottenColor(i int) color.RGBA {
	return color.RGBA{R: uint8(60 + i), G: uint8(40 + i), B: 20, A: 255}
}

// writeTree creates n fresh and n rotten apple images under root.
func writeTree(t *testing.T, root string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, imageproc.SaveJPEG(
			filepath.Join(root, types.StateFresh, "apple", fmt.Sprintf("f_%02d.jpg", i)), solid(freshColor(i)), 90))
		require.NoError(t, imageproc.SaveJPEG(
			filepath.Join(root, types.StateRotten, "apple", fmt.Sprintf("r_%02d.jpg", i)), solid(rottenColor(i)), 90))
	}
}

func testTrainer() *Trainer {
	return &Trainer{
		Options: Options{Hidden: 8, Epochs: 120, BatchSize: 8, LearningRate: 0.05, Patience: 20},
		Logger:  logging.Discard(),
		Now:     func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
}

func TestLoadDataset(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, 3)
	require.NoError(t, os.WriteFile(filepath.Join(root, types.StateFresh, "apple", "notes.txt"), []byte("x"), 0o644))

	samples, err := LoadDataset(root)
	require.NoError(t, err)
	require.Len(t, samples, 6)
	fresh, rotten := Counts(samples)
	assert.Equal(t, 3, fresh)
	assert.Equal(t, 3, rotten)
	assert.Equal(t, "apple", samples[0].Produce)

	_, err = LoadDataset(t.TempDir())
	assert.ErrorIs(t, err, types.ErrEmptyDataset)
}

func TestSplit_Stratified(t *testing.T) {
	var samples []Sample
	for i := 0; i < 10; i++ {
		samples = append(samples, Sample{Path: fmt.Sprintf("f%d", i), Label: 1})
	}
	for i := 0; i < 20; i++ {
		samples = append(samples, Sample{Path: fmt.Sprintf("r%d", i), Label: 0})
	}

	trainSet, valSet := Split(samples, 0.2, 42)
	f, r := Counts(valSet)
	assert.Equal(t, 2, f)
	assert.Equal(t, 4, r)
	assert.Len(t, trainSet, 24)

	again, _ := Split(samples, 0.2, 42)
	assert.Equal(t, trainSet, again)
}

func TestFeatures(t *testing.T) {
	dark := Features(solidN(color.RGBA{A: 255}, InputSize))
	require.Len(t, dark, FeatureSize)
	assert.InDelta(t, 1.0, dark[FeatureSize-1], 1e-9)

	var histSum float64
	for _, v := range dark[:hueBins*satBins*valBins] {
		histSum += v
	}
	assert.InDelta(t, 1.0, histSum, 1e-9)

	white := Features(solidN(color.RGBA{R: 255, G: 255, B: 255, A: 255}, InputSize))
	assert.InDelta(t, 0.0, white[FeatureSize-1], 1e-9)
	assert.InDelta(t, 1.0, white[hueBins*satBins*valBins], 1e-9) // red mean
}

func TestHSV(t *testing.T) {
	h, s, v := hsv(0, 1, 0)
	assert.InDelta(t, 120, h, 1e-9)
	assert.InDelta(t, 1, s, 1e-9)
	assert.InDelta(t, 1, v, 1e-9)

	h, _, _ = hsv(1, 0, 1)
	assert.InDelta(t, 300, h, 1e-9)
}

func TestEvaluate(t *testing.T) {
	m := Evaluate([]float64{0.9, 0.8, 0.3, 0.6, 0.1}, []float64{1, 1, 1, 0, 0})
	assert.Equal(t, [2][2]int{{1, 1}, {1, 2}}, m.Confusion)
	assert.InDelta(t, 0.6, m.Accuracy, 1e-9)
	assert.InDelta(t, 2.0/3, m.Precision, 1e-9)
	assert.InDelta(t, 2.0/3, m.Recall, 1e-9)
	assert.Greater(t, m.Loss, 0.0)
}

func TestTrain_SeparatesColours(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, 20)

	model, err := testTrainer().TrainDir(context.Background(), root)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, model.Info.Metrics.Accuracy, 0.9)
	assert.Equal(t, 32, model.Info.TrainSamples)
	assert.Equal(t, 8, model.Info.ValSamples)
	assert.Equal(t, []string{"apple"}, model.Info.Produce)
	assert.Equal(t, "2026-01-02T03:04:05Z", model.Info.Created)

	fresh := model.Predict(solid(freshColor(5)))
	assert.Equal(t, types.StateFresh, fresh.Classification)
	assert.Equal(t, types.RecommendBuy, fresh.Recommendation)
	assert.Greater(t, fresh.Freshness, 50)

	rotten := model.Predict(solid(rottenColor(5)))
	assert.Equal(t, types.StateRotten, rotten.Classification)
	assert.Equal(t, types.RecommendAvoid, rotten.Recommendation)
	assert.Less(t, rotten.Freshness, 50)
}

func TestTrain_SingleClass(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 4; i++ {
		require.NoError(t, imageproc.SaveJPEG(
			filepath.Join(root, types.StateFresh, "pear", fmt.Sprintf("%d.jpg", i)), solid(freshColor(i)), 90))
	}
	_, err := testTrainer().TrainDir(context.Background(), root)
	assert.ErrorIs(t, err, ErrSingleClass)
}

func TestTrain_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testTrainer().TrainDir(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestModel_SaveLoad(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, 6)
	model, err := testTrainer().TrainDir(context.Background(), root)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "models")
	require.NoError(t, model.Save(dir))
	assert.FileExists(t, filepath.Join(dir, WeightsFile))
	assert.FileExists(t, filepath.Join(dir, InfoFile))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, model.Info, loaded.Info)

	img := solid(freshColor(3))
	assert.InDelta(t, model.Predict(img).Probability, loaded.Predict(img).Probability, 1e-12)

	path := filepath.Join(root, types.StateRotten, "apple", "r_01.jpg")
	fromFile, err := loaded.PredictFile(path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fromBytes, err := loaded.PredictBytes(data)
	require.NoError(t, err)
	assert.Equal(t, fromFile, fromBytes)
}

func TestLoad_Incompatible(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, WeightsFile), []byte{0x80}, 0o644))
	_, err := Load(dir)
	assert.ErrorIs(t, err, ErrIncompatibleModel)

	_, err = Load(t.TempDir())
	assert.Error(t, err)
}

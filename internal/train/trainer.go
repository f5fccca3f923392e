package train

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/mesh-intelligence/freshset/internal/imageproc"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// Training defaults.
const (
	DefaultHidden       = 32
	DefaultEpochs       = 50
	DefaultBatchSize    = 32
	DefaultLearningRate = 0.001
	DefaultPatience     = 8
	DefaultValFraction  = 0.2
	DefaultSeed         = 42
)

// ErrSingleClass is returned when the dataset holds only one state.
var ErrSingleClass = errors.New("training data needs both fresh and rotten images")

// Options configures a training run. Zero fields take the defaults.
type Options struct {
	Hidden       int
	Epochs       int
	BatchSize    int
	LearningRate float64
	Patience     int
	ValFraction  float64
	Seed         uint64
}

func (o Options) withDefaults() Options {
	if o.Hidden <= 0 {
		o.Hidden = DefaultHidden
	}
	if o.Epochs <= 0 {
		o.Epochs = DefaultEpochs
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.LearningRate <= 0 {
		o.LearningRate = DefaultLearningRate
	}
	if o.Patience <= 0 {
		o.Patience = DefaultPatience
	}
	if o.ValFraction <= 0 || o.ValFraction >= 1 {
		o.ValFraction = DefaultValFraction
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	return o
}

// Trainer fits a Model on an organized image tree.
type Trainer struct {
	Options Options
	Logger  *slog.Logger
	Now     func() time.Time
}

// TrainDir loads every image under root and trains on them.
func (t *Trainer) TrainDir(ctx context.Context, root string) (*Model, error) {
	samples, err := LoadDataset(root)
	if err != nil {
		return nil, err
	}
	return t.Train(ctx, samples)
}

// Train extracts features, splits the samples, and fits the network with
// mini-batch Adam. Training stops early when the validation loss has not
// improved for Patience epochs; the best weights are kept.
func (t *Trainer) Train(ctx context.Context, samples []Sample) (*Model, error) {
	opts := t.Options.withDefaults()
	log := t.logger()

	trainSet, valSet := Split(samples, opts.ValFraction, opts.Seed)
	xTrain, yTrain, produce := t.extract(trainSet)
	xVal, yVal, _ := t.extract(valSet)
	if len(xTrain) == 0 {
		return nil, types.ErrEmptyDataset
	}
	if fresh, rotten := labelCounts(yTrain); fresh == 0 || rotten == 0 {
		return nil, ErrSingleClass
	}
	if len(xVal) == 0 {
		xVal, yVal = xTrain, yTrain
	}
	log.Info("dataset loaded", "train", len(xTrain), "validation", len(xVal))

	r := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	net := newNetwork(FeatureSize, opts.Hidden, r)
	net.fitScaler(xTrain)
	trainX := net.matrix(xTrain)
	valX := net.matrix(xVal)
	opt := newAdam(opts.LearningRate, net.params())

	best := net.clone()
	bestLoss := math.Inf(1)
	stale, epochs := 0, 0
	order := make([]int, len(xTrain))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		epochs = epoch
		r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for start := 0; start < len(order); start += opts.BatchSize {
			idx := order[start:min(start+opts.BatchSize, len(order))]
			xb, yb := batch(trainX, yTrain, idx)
			opt.step(net.params(), net.gradients(xb, yb))
		}

		_, pVal := net.forward(valX)
		valLoss := crossEntropy(pVal, yVal)
		log.Debug("epoch finished", "epoch", epoch, "val_loss", valLoss)
		if valLoss < bestLoss-1e-6 {
			bestLoss = valLoss
			best = net.clone()
			stale = 0
			continue
		}
		stale++
		if stale >= opts.Patience {
			log.Info("early stopping", "epoch", epoch, "best_val_loss", bestLoss)
			break
		}
	}

	_, pVal := best.forward(valX)
	metrics := Evaluate(pVal, yVal)
	log.Info("training finished", "epochs", epochs, "accuracy", metrics.Accuracy,
		"precision", metrics.Precision, "recall", metrics.Recall)

	return &Model{
		net: best,
		Info: Info{
			Architecture: Architecture,
			InputSize:    [2]int{InputSize, InputSize},
			FeatureSize:  FeatureSize,
			Hidden:       opts.Hidden,
			Classes:      Classes,
			Produce:      produce,
			TrainSamples: len(xTrain),
			ValSamples:   len(xVal),
			Epochs:       epochs,
			Metrics:      metrics,
			Created:      t.now().UTC().Format(time.RFC3339),
		},
	}, nil
}

// extract computes features for each sample, skipping unreadable images.
func (t *Trainer) extract(samples []Sample) ([][]float64, []float64, []string) {
	x := make([][]float64, 0, len(samples))
	y := make([]float64, 0, len(samples))
	seen := map[string]bool{}
	for _, s := range samples {
		img, err := imageproc.DecodeFile(s.Path)
		if err != nil {
			t.logger().Warn("image skipped", "path", s.Path, "error", err)
			continue
		}
		x = append(x, Features(img))
		y = append(y, s.Label)
		if s.Produce != "" {
			seen[s.Produce] = true
		}
	}
	produce := make([]string, 0, len(seen))
	for p := range seen {
		produce = append(produce, p)
	}
	sort.Strings(produce)
	return x, y, produce
}

// batch copies the rows idx of x into a new matrix.
func batch(x *mat.Dense, y []float64, idx []int) (*mat.Dense, []float64) {
	_, cols := x.Dims()
	xb := mat.NewDense(len(idx), cols, nil)
	yb := make([]float64, len(idx))
	for i, k := range idx {
		xb.SetRow(i, x.RawRowView(k))
		yb[i] = y[k]
	}
	return xb, yb
}

func labelCounts(y []float64) (fresh, rotten int) {
	for _, v := range y {
		if v == 1 {
			fresh++
		} else {
			rotten++
		}
	}
	return fresh, rotten
}

func (t *Trainer) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

func (t *Trainer) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

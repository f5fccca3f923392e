package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/freshset/internal/train"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

func newTrainCmd(a *app) *cobra.Command {
	var (
		dataDir, modelDir string
		opts              train.Options
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the local freshness classifier on an organized tree",
		Long: "Train reads <data>/<fresh|rotten>/<produce>/*.jpg, fits a dense head on\n" +
			"colour features with a stratified validation split, and writes\n" +
			"model.msgpack and model_info.json to the model directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := a.layout()
			if dataDir == "" {
				dataDir = layout.OrganizedDir()
			}
			if modelDir == "" {
				modelDir = layout.ModelDir()
			}
			a.trainDefaults(cmd, &opts)

			t := &train.Trainer{Options: opts, Logger: a.logger}
			model, err := t.TrainDir(cmd.Context(), dataDir)
			if err != nil {
				return err
			}
			if err := model.Save(modelDir); err != nil {
				return sysError(err)
			}

			info := model.Info
			return a.emit(cmd, info, func(w io.Writer) {
				m := info.Metrics
				fmt.Fprintf(w, "trained on %d images, validated on %d (%d epochs)\n", info.TrainSamples, info.ValSamples, info.Epochs)
				fmt.Fprintf(w, "accuracy %.4f  precision %.4f  recall %.4f  loss %.4f\n", m.Accuracy, m.Precision, m.Recall, m.Loss)
				fmt.Fprintf(w, "confusion [actual x predicted, rotten/fresh]: %v\n", m.Confusion)
				fmt.Fprintf(w, "model saved to %s\n", modelDir)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&dataDir, "data", "", "organized image tree (default: real-training-data/organized)")
	f.StringVar(&modelDir, "model-dir", "", "output directory (default: train.model_dir, $FRESHSET_MODEL_DIR or <workspace>/models)")
	f.IntVar(&opts.Epochs, "epochs", train.DefaultEpochs, "maximum training epochs")
	f.IntVar(&opts.BatchSize, "batch-size", train.DefaultBatchSize, "mini-batch size")
	f.Float64Var(&opts.LearningRate, "learning-rate", train.DefaultLearningRate, "Adam learning rate")
	f.IntVar(&opts.Hidden, "hidden", train.DefaultHidden, "hidden units")
	f.IntVar(&opts.Patience, "patience", train.DefaultPatience, "early stopping patience in epochs")
	f.Uint64Var(&opts.Seed, "seed", train.DefaultSeed, "random seed for the split and weights")
	return cmd
}

// trainDefaults fills options whose flags were not given from config.yaml.
func (a *app) trainDefaults(cmd *cobra.Command, opts *train.Options) {
	f := cmd.Flags()
	if !f.Changed("epochs") {
		opts.Epochs = a.cfg.GetInt(cfgKeyTrainEpochs)
	}
	if !f.Changed("batch-size") {
		opts.BatchSize = a.cfg.GetInt(cfgKeyTrainBatch)
	}
	if !f.Changed("learning-rate") {
		opts.LearningRate = a.cfg.GetFloat64(cfgKeyTrainLR)
	}
	if !f.Changed("hidden") {
		opts.Hidden = a.cfg.GetInt(cfgKeyTrainHidden)
	}
	if !f.Changed("patience") {
		opts.Patience = a.cfg.GetInt(cfgKeyTrainPatience)
	}
	if !f.Changed("seed") {
		opts.Seed = a.cfg.GetUint64(cfgKeyTrainSeed)
	}
}

type predictResult struct {
	Path string `json:"path"`
	train.Prediction
	Error string `json:"error,omitempty"`
}

func newPredictCmd(a *app) *cobra.Command {
	var modelDir string
	cmd := &cobra.Command{
		Use:   "predict <image>...",
		Short: "Classify images with the trained model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.loadModel(modelDir)
			if err != nil {
				return err
			}
			results := make([]predictResult, len(args))
			failed := 0
			for i, path := range args {
				results[i].Path = path
				p, err := model.PredictFile(path)
				if err != nil {
					a.logger.Warn("image skipped", "path", path, "error", err)
					results[i].Error = err.Error()
					failed++
					continue
				}
				results[i].Prediction = p
			}

			if err := a.emit(cmd, results, func(w io.Writer) {
				rows := make([][]any, 0, len(results))
				for _, r := range results {
					if r.Error != "" {
						rows = append(rows, []any{r.Path, "error", "-", "-", r.Error})
						continue
					}
					rows = append(rows, []any{r.Path, r.Classification, r.Freshness, r.Confidence, r.Recommendation})
				}
				table(w, "IMAGE\tCLASS\tFRESHNESS\tCONFIDENCE\tRECOMMENDATION", rows)
			}); err != nil {
				return err
			}
			if failed == len(args) {
				return userError(errors.New("no image could be classified"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "model directory (default: train.model_dir, $FRESHSET_MODEL_DIR or <workspace>/models)")
	return cmd
}

// loadModel loads the model from dir or the workspace model directory. A
// missing weights file is reported as types.ErrModelNotTrained.
func (a *app) loadModel(dir string) (*train.Model, error) {
	if dir == "" {
		dir = a.layout().ModelDir()
	}
	if _, err := os.Stat(filepath.Join(dir, train.WeightsFile)); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: no %s in %s (run freshset train)", types.ErrModelNotTrained, train.WeightsFile, dir)
	}
	return train.Load(dir)
}

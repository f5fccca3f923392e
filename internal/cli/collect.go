package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/freshset/internal/collect"
	"github.com/mesh-intelligence/freshset/internal/fetch"
	"github.com/mesh-intelligence/freshset/internal/finetune"
	"github.com/mesh-intelligence/freshset/internal/imageproc"
	"github.com/mesh-intelligence/freshset/internal/organize"
	"github.com/mesh-intelligence/freshset/internal/paths"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

type collectResult struct {
	Samples       int    `json:"samples"`
	Fresh         int    `json:"fresh"`
	Rotten        int    `json:"rotten"`
	Metadata      string `json:"metadata_file"`
	TrainingFile  string `json:"training_file,omitempty"`
	TrainingLines int    `json:"training_examples"`
}

func newCollectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Create per-image records for the produce dataset",
	}
	cmd.AddCommand(newCollectGenerateCmd(a))
	cmd.AddCommand(newCollectDownloadCmd(a))
	cmd.AddCommand(newCollectSyntheticCmd(a))
	cmd.AddCommand(newCollectSourcesCmd(a))
	return cmd
}

func newCollectGenerateCmd(a *app) *cobra.Command {
	var (
		perState int
		produce  []string
		noFormat bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write synthetic placeholder records for every produce",
		Long: "Generate writes <per-state> fresh and rotten records per produce under\n" +
			"global-training-data, writes dataset_metadata.json and formats the records\n" +
			"into openai_training_data.jsonl.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("per-state") {
				perState = a.cfg.GetInt(cfgKeyPerState)
			}
			list := collect.DefaultProduce()
			if len(produce) > 0 {
				list = collect.LookupAll(produce)
			}

			backend, err := a.attachCatalog()
			if err != nil {
				return err
			}
			defer backend.Detach()

			layout := a.layout()
			g := &collect.Generator{Root: layout.CollectDir(), PerState: perState, Index: backend, Logger: a.logger}
			entries, err := g.Generate(list)
			if err != nil {
				return sysError(err)
			}
			return a.finishCollect(cmd, backend, layout, list, entries, perState, collect.SourceGenerated, paths.TrainingFile, noFormat)
		},
	}
	cmd.Flags().IntVar(&perState, "per-state", collect.DefaultPerState, "records per produce per state")
	cmd.Flags().StringSliceVar(&produce, "produce", nil, "produce names (default: the global produce list)")
	cmd.Flags().BoolVar(&noFormat, "no-format", false, "skip writing the fine-tuning JSONL file")
	return cmd
}

func newCollectDownloadCmd(a *app) *cobra.Command {
	var (
		sourcesPath string
		target      int
		delay       time.Duration
		produce     []string
		noFormat    bool
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download real images listed in the sources file",
		Long: "Download fetches the URLs of the sources file for every produce and state,\n" +
			"normalizes each image to a JPEG data URL and writes one record per image.\n" +
			"Failed downloads are logged and skipped. The records are formatted into\n" +
			"openai_training_data_with_real_images.jsonl.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("target") {
				target = a.cfg.GetInt(cfgKeyTarget)
			}
			if !cmd.Flags().Changed("delay") {
				delay = a.cfg.GetDuration(cfgKeyDelay)
			}
			sources, err := a.loadSources(sourcesPath)
			if err != nil {
				return err
			}
			names := produce
			if len(names) == 0 {
				names = sources.ProduceNames()
			}
			list := collect.LookupAll(names)

			backend, err := a.attachCatalog()
			if err != nil {
				return err
			}
			defer backend.Detach()

			layout := a.layout()
			c := &collect.Collector{
				Root:    layout.CollectDir(),
				Target:  target,
				Delay:   delay,
				Quality: imageproc.DefaultQuality,
				Sources: sources,
				Fetch:   fetch.New(a.cfg.GetDuration(cfgKeyTimeout)),
				Index:   backend,
				Logger:  a.logger,
			}
			entries, err := c.Collect(cmd.Context(), list)
			if err != nil {
				return err
			}
			return a.finishCollect(cmd, backend, layout, list, entries, target, collect.SourceDownloaded, paths.RealImagesFile, noFormat)
		},
	}
	cmd.Flags().StringVar(&sourcesPath, "sources", "", "YAML sources file (default: config collect.sources, then sources.yaml in the config dir)")
	cmd.Flags().IntVar(&target, "target", collect.DefaultPerState, "images per produce per state")
	cmd.Flags().DurationVar(&delay, "delay", collect.DefaultDelay, "pause between downloads")
	cmd.Flags().StringSliceVar(&produce, "produce", nil, "produce names (default: every produce in the sources file)")
	cmd.Flags().BoolVar(&noFormat, "no-format", false, "skip writing the fine-tuning JSONL file")
	return cmd
}

type syntheticResult struct {
	Images   int                    `json:"images"`
	Output   string                 `json:"output"`
	Metadata *types.DatasetMetadata `json:"metadata"`
}

func newCollectSyntheticCmd(a *app) *cobra.Command {
	var (
		perState int
		produce  []string
		output   string
		seed     uint64
	)
	cmd := &cobra.Command{
		Use:   "synthetic",
		Short: "Paint synthetic produce images into the organized tree",
		Long: "Synthetic renders 224x224 JPEGs per produce and state into\n" +
			"<output>/<state>/<produce>/ and writes metadata.json, giving train a\n" +
			"dataset without any download.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = a.layout().OrganizedDir()
			}
			backend, err := a.attachCatalog()
			if err != nil {
				return err
			}
			defer backend.Detach()

			p := &collect.Painter{Root: output, PerState: perState, Seed: seed, Index: backend, Logger: a.logger}
			entries, err := p.Paint(produce)
			if err != nil {
				return sysError(err)
			}
			stats := make(map[string]map[string]int)
			for _, e := range entries {
				if stats[e.State] == nil {
					stats[e.State] = make(map[string]int)
				}
				stats[e.State][e.Produce]++
			}
			res := syntheticResult{Images: len(entries), Output: output, Metadata: organize.BuildMetadata(stats, time.Now())}
			if err := organize.WriteMetadata(output, res.Metadata); err != nil {
				return sysError(err)
			}
			return a.emit(cmd, res, func(w io.Writer) {
				fmt.Fprintf(w, "painted %d images into %s\n", res.Images, output)
				printStats(w, stats)
			})
		},
	}
	cmd.Flags().IntVar(&perState, "per-state", collect.DefaultSyntheticPerState, "images per produce per state")
	cmd.Flags().StringSliceVar(&produce, "produce", collect.DefaultSyntheticProduce, "produce to paint")
	cmd.Flags().StringVar(&output, "output", "", "organized tree (default: real-training-data/organized)")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed")
	return cmd
}

func newCollectSourcesCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Write the built-in image sources as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = filepath.Join(a.configDir, sourcesFileExt)
			}
			if err := collect.DefaultSources().Save(output); err != nil {
				return sysError(err)
			}
			fmt.Fprintln(out(cmd), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file (default: sources.yaml in the config dir)")
	return cmd
}

// loadSources reads the sources file named by flag, config, or the config
// dir, falling back to the built-in sources when none exists.
func (a *app) loadSources(flag string) (*collect.Sources, error) {
	path := flag
	if path == "" {
		path = a.cfg.GetString(cfgKeySources)
	}
	explicit := path != ""
	if !explicit {
		path = filepath.Join(a.configDir, sourcesFileExt)
	}
	s, err := collect.LoadSources(path)
	switch {
	case err == nil:
		return s, nil
	case !explicit && errors.Is(err, fs.ErrNotExist):
		a.logger.Info("no sources file, using built-in sources", "path", path)
		return collect.DefaultSources(), nil
	default:
		return nil, fmt.Errorf("load sources: %w", err)
	}
}

// finishCollect writes dataset_metadata.json and, unless skipped, formats
// every catalogued record of source into the fine-tuning JSONL.
func (a *app) finishCollect(cmd *cobra.Command, idx finetune.Lister, layout paths.Layout, list []collect.Produce,
	entries []*types.ImageEntry, perState int, source, trainingFile string, noFormat bool) error {
	md := collect.BuildMetadata(list, entries, perState, time.Now())
	mdPath, err := collect.WriteMetadata(layout.CollectDir(), md)
	if err != nil {
		return sysError(err)
	}

	res := collectResult{Samples: len(entries), Metadata: mdPath}
	for _, e := range entries {
		if e.State == types.StateFresh {
			res.Fresh++
		} else {
			res.Rotten++
		}
	}

	if !noFormat && len(entries) > 0 {
		res.TrainingFile = filepath.Join(layout.CollectDir(), trainingFile)
		n, err := finetune.FormatFromCatalog(idx, source, res.TrainingFile, a.logger)
		if err != nil {
			return err
		}
		res.TrainingLines = n
	}

	return a.emit(cmd, res, func(w io.Writer) {
		fmt.Fprintf(w, "%d records written (%d fresh, %d rotten)\n", res.Samples, res.Fresh, res.Rotten)
		fmt.Fprintf(w, "metadata: %s\n", res.Metadata)
		if res.TrainingFile != "" {
			fmt.Fprintf(w, "training file: %s (%d examples)\n", res.TrainingFile, res.TrainingLines)
		}
	})
}

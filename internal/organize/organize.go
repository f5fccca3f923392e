package organize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/freshset/internal/imageproc"
	"github.com/mesh-intelligence/freshset/internal/paths"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// imageExts lists the accepted input extensions.
var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true}

// Indexer registers organized images in batches. *sqlite.Backend
// satisfies it.
type Indexer interface {
	AddImages(entries []*types.ImageEntry) error
}

// Organizer copies every recognizable image of every dataset folder under
// Source into Output/<quality>/<produce>.
type Organizer struct {
	Source  string
	Output  string
	Quality int
	Index   Indexer // optional
	Logger  *slog.Logger
	Now     func() time.Time
}

// Result reports what Run did.
type Result struct {
	Datasets []string
	Stats    map[string]map[string]int
	Skipped  int
	Failed   int
	Metadata *types.DatasetMetadata
}

// Total is the number of organized images.
func (r *Result) Total() int {
	n := 0
	for _, byProduce := range r.Stats {
		for _, c := range byProduce {
			n += c
		}
	}
	return n
}

// Run organizes all dataset folders and writes metadata.json. It returns
// types.ErrEmptyDataset when no dataset folder exists.
func (o *Organizer) Run(ctx context.Context) (*Result, error) {
	logger := o.logger()
	datasets, err := o.datasetFolders()
	if err != nil {
		return nil, err
	}
	if len(datasets) == 0 {
		return nil, fmt.Errorf("%w: no dataset folders in %s", types.ErrEmptyDataset, o.Source)
	}

	res := &Result{Stats: make(map[string]map[string]int)}
	for _, ds := range datasets {
		res.Datasets = append(res.Datasets, filepath.Base(ds))
		n, err := o.organizeDataset(ctx, ds, res)
		if err != nil {
			return res, err
		}
		logger.Info("organized dataset", "dataset", filepath.Base(ds), "images", n)
	}

	res.Metadata = BuildMetadata(res.Stats, o.now())
	if err := WriteMetadata(o.Output, res.Metadata); err != nil {
		return res, err
	}
	return res, nil
}

// datasetFolders lists the direct subdirectories of Source, skipping the
// output and unified trees.
func (o *Organizer) datasetFolders() ([]string, error) {
	entries, err := os.ReadDir(o.Source)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", o.Source, err)
	}
	outAbs, _ := filepath.Abs(o.Output)
	var out []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == paths.UnifiedDirName || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		dir := filepath.Join(o.Source, e.Name())
		if abs, _ := filepath.Abs(dir); abs == outAbs {
			continue
		}
		out = append(out, dir)
	}
	sort.Strings(out)
	return out, nil
}

func (o *Organizer) organizeDataset(ctx context.Context, dataset string, res *Result) (int, error) {
	logger := o.logger()
	name := filepath.Base(dataset)
	quality := o.Quality
	if quality <= 0 {
		quality = imageproc.DefaultQuality
	}

	processed := 0
	var written []*types.ImageEntry
	err := filepath.WalkDir(dataset, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("walk error", "path", path, "error", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !imageExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		// The dataset folder is part of the match; slugs often name the produce.
		rel, _ := filepath.Rel(o.Source, path)
		produce := IdentifyProduce(rel)
		state := IdentifyQuality(rel)
		if produce == Unknown || state == Unknown {
			res.Skipped++
			logger.Debug("unrecognized image", "path", path, "produce", produce, "quality", state)
			return nil
		}

		img, err := imageproc.DecodeFile(path)
		if err != nil {
			res.Failed++
			logger.Warn("image rejected", "path", path, "error", err)
			return nil
		}
		dst := filepath.Join(o.Output, state, produce, fmt.Sprintf("%s_%04d.jpg", name, processed))
		if err := imageproc.SaveJPEG(dst, imageproc.Normalize(img, imageproc.MaxDimension), quality); err != nil {
			res.Failed++
			logger.Warn("saving image failed", "path", dst, "error", err)
			return nil
		}
		written = append(written, &types.ImageEntry{Produce: produce, State: state, Path: dst, Source: name})
		if res.Stats[state] == nil {
			res.Stats[state] = make(map[string]int)
		}
		res.Stats[state][produce]++
		processed++
		return nil
	})
	if o.Index != nil && len(written) > 0 {
		if idxErr := o.Index.AddImages(written); idxErr != nil {
			return processed, fmt.Errorf("indexing %s: %w", name, idxErr)
		}
	}
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return processed, err
	}
	return processed, nil
}

// BuildMetadata describes an organized tree from its per-quality counts.
func BuildMetadata(stats map[string]map[string]int, created time.Time) *types.DatasetMetadata {
	total := 0
	seen := make(map[string]bool)
	for _, byProduce := range stats {
		for p, c := range byProduce {
			total += c
			seen[p] = true
		}
	}
	names := make([]string, 0, len(seen))
	for p := range seen {
		names = append(names, p)
	}
	sort.Strings(names)

	labels := make(map[string]int, len(names))
	for i, p := range names {
		labels[p] = i
	}

	return &types.DatasetMetadata{
		DatasetInfo: types.DatasetInfo{
			Name:             "FruitAI Comprehensive Freshness Dataset",
			Version:          "2.0.0",
			Created:          created.Format(time.DateOnly),
			Description:      "Fruit and vegetable freshness dataset compiled from multiple public sources",
			TotalImages:      total,
			Classes:          len(stats),
			FruitsVegetables: names,
		},
		Statistics:    stats,
		QualityLabels: types.QualityLabels,
		FruitLabels:   labels,
	}
}

// WriteMetadata writes md as metadata.json at the top of an organized tree.
func WriteMetadata(dir string, md *types.DatasetMetadata) error {
	return writeJSON(filepath.Join(dir, paths.OrganizedMetaFile), md)
}

func (o *Organizer) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Organizer) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Package train fits and runs the freshness classifier: a fixed colour
// feature extractor followed by a small dense network.
package train

import (
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mesh-intelligence/freshset/pkg/types"
)

// Sample is one labelled image of the organized tree.
type Sample struct {
	Path    string
	Produce string
	State   string
	Label   float64 // 1 fresh, 0 rotten
}

var sampleExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// LoadDataset lists <root>/<state>/<produce>/<image> for both states.
// Files directly under a state directory get an empty produce.
func LoadDataset(root string) ([]Sample, error) {
	var out []Sample
	for _, state := range types.States {
		dir := filepath.Join(root, state)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !sampleExts[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			rel, _ := filepath.Rel(dir, path)
			produce := ""
			if parts := strings.Split(filepath.ToSlash(rel), "/"); len(parts) > 1 {
				produce = parts[0]
			}
			out = append(out, Sample{
				Path:    path,
				Produce: produce,
				State:   state,
				Label:   float64(types.QualityLabels[state]),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
	}
	if len(out) == 0 {
		return nil, types.ErrEmptyDataset
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Split partitions samples into training and validation sets, keeping the
// class ratio in both. The split is deterministic for a given seed.
func Split(samples []Sample, valFraction float64, seed uint64) (trainSet, valSet []Sample) {
	byLabel := map[float64][]Sample{}
	for _, s := range samples {
		byLabel[s.Label] = append(byLabel[s.Label], s)
	}
	r := rand.New(rand.NewPCG(seed, seed))
	for _, label := range []float64{0, 1} {
		group := append([]Sample(nil), byLabel[label]...)
		r.Shuffle(len(group), func(i, j int) { group[i], group[j] = group[j], group[i] })
		n := int(float64(len(group))*valFraction + 0.5)
		if n == 0 && len(group) > 1 && valFraction > 0 {
			n = 1
		}
		valSet = append(valSet, group[:n]...)
		trainSet = append(trainSet, group[n:]...)
	}
	return trainSet, valSet
}

// Counts returns the number of fresh and rotten samples.
func Counts(samples []Sample) (fresh, rotten int) {
	for _, s := range samples {
		if s.Label == 1 {
			fresh++
		} else {
			rotten++
		}
	}
	return fresh, rotten
}

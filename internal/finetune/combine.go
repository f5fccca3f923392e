package finetune

import (
	"errors"
	"log/slog"
	"os"

	"github.com/mesh-intelligence/freshset/pkg/types"
)

// DefaultTopUpCap bounds how many synthetic fresh examples Combine adds.
const DefaultTopUpCap = 50

// CombineResult counts the examples of a combined set.
type CombineResult struct {
	Fresh  int `json:"fresh"`
	Rotten int `json:"rotten"`
	TopUp  int `json:"synthetic_top_up"`
}

// Combine keeps the fresh examples of realEx and the rotten examples of
// synthetic. When fresh examples are outnumbered it appends synthetic fresh
// examples, at most min(rotten-fresh, limit). Unlabelled examples are dropped.
func Combine(realEx, synthetic []*types.TrainingExample, limit int) ([]*types.TrainingExample, CombineResult) {
	var out []*types.TrainingExample
	var res CombineResult
	for _, ex := range realEx {
		if c, err := Classification(ex); err == nil && c == types.StateFresh {
			out = append(out, ex)
			res.Fresh++
		}
	}
	for _, ex := range synthetic {
		if c, err := Classification(ex); err == nil && c == types.StateRotten {
			out = append(out, ex)
			res.Rotten++
		}
	}

	if res.Fresh < res.Rotten {
		needed := min(res.Rotten-res.Fresh, limit)
		for _, ex := range synthetic {
			if res.TopUp >= needed {
				break
			}
			if c, err := Classification(ex); err == nil && c == types.StateFresh {
				out = append(out, ex)
				res.TopUp++
			}
		}
		res.Fresh += res.TopUp
	}
	return out, res
}

// CombineFiles combines the real-image and synthetic training files into
// out. A missing input file counts as empty.
func CombineFiles(realPath, syntheticPath, out string, limit int, logger *slog.Logger) (CombineResult, error) {
	realEx, err := readOptional(realPath)
	if err != nil {
		return CombineResult{}, err
	}
	synthetic, err := readOptional(syntheticPath)
	if err != nil {
		return CombineResult{}, err
	}
	logger.Info("loaded training files", "real", len(realEx), "synthetic", len(synthetic))

	combined, res := Combine(realEx, synthetic, limit)
	if err := WriteJSONL(out, combined); err != nil {
		return res, err
	}
	logger.Info("combined training file written", "path", out, "fresh", res.Fresh, "rotten", res.Rotten, "top_up", res.TopUp)
	return res, nil
}

func readOptional(path string) ([]*types.TrainingExample, error) {
	ex, err := ReadJSONL(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return ex, err
}

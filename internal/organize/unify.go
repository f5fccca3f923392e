package organize

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mesh-intelligence/freshset/internal/paths"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// DefaultUnifiedProduce is the produce set copied by Unify.
var DefaultUnifiedProduce = []string{"apple", "banana", "orange"}

// Unify copies <src>/<state>/<produce>/*.jpg into the same layout under
// dst for the given produce and writes summary.json with the resulting
// counts. Files already present in dst are overwritten.
func Unify(src, dst string, produce []string, created time.Time) (*types.Summary, error) {
	if len(produce) == 0 {
		produce = DefaultUnifiedProduce
	}
	for _, state := range types.States {
		for _, p := range produce {
			if err := os.MkdirAll(filepath.Join(dst, state, p), 0o755); err != nil {
				return nil, err
			}
		}
	}

	if _, err := os.Stat(src); err == nil {
		for _, state := range types.States {
			for _, p := range produce {
				files, err := filepath.Glob(filepath.Join(src, state, p, "*.jpg"))
				if err != nil {
					return nil, err
				}
				sort.Strings(files)
				for _, f := range files {
					if err := copyFile(f, filepath.Join(dst, state, p, filepath.Base(f))); err != nil {
						return nil, err
					}
				}
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	summary := &types.Summary{
		Structure: make(map[string]map[string]int),
		Created:   created.Format(time.DateOnly),
	}
	for _, state := range types.States {
		summary.Structure[state] = make(map[string]int)
		for _, p := range produce {
			files, err := filepath.Glob(filepath.Join(dst, state, p, "*.jpg"))
			if err != nil {
				return nil, err
			}
			summary.Structure[state][p] = len(files)
			summary.TotalImages += len(files)
		}
	}
	if err := writeJSON(filepath.Join(dst, paths.UnifiedSummaryFile), summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// copyFile copies src to dst and keeps the modification time.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

package finetune

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/freshset/pkg/types"
)

// maxLineBytes bounds one JSONL line; examples embed base64 images.
const maxLineBytes = 64 << 20

// WriteJSONL writes one example per line, replacing path atomically.
func WriteJSONL(path string, examples []*types.TrainingExample) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".training-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, ex := range examples {
		if err = enc.Encode(ex); err != nil {
			return fmt.Errorf("encoding example: %w", err)
		}
	}
	if err = w.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadJSONL reads every example in path. Blank lines are ignored; a
// malformed line is an error naming its line number.
func ReadJSONL(path string) ([]*types.TrainingExample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []*types.TrainingExample
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var ex types.TrainingExample
		if err := json.Unmarshal(b, &ex); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, &ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}

package finetune

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/freshset/internal/logging"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

func examples(t *testing.T, fresh, rotten int) []*types.TrainingExample {
	t.Helper()
	var out []*types.TrainingExample
	for i := 0; i < fresh; i++ {
		ex, err := BuildExample(sampleRecord("apple", types.StateFresh))
		require.NoError(t, err)
		out = append(out, ex)
	}
	for i := 0; i < rotten; i++ {
		ex, err := BuildExample(sampleRecord("apple", types.StateRotten))
		require.NoError(t, err)
		out = append(out, ex)
	}
	return out
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name                  string
		realFresh, realRotten int
		synFresh, synRotten   int
		limit                 int
		want                  CombineResult
	}{
		{"balanced needs no top-up", 5, 3, 10, 5, 50, CombineResult{Fresh: 5, Rotten: 5}},
		{"top-up fills the gap", 2, 0, 10, 6, 50, CombineResult{Fresh: 6, Rotten: 6, TopUp: 4}},
		{"top-up is capped", 0, 0, 100, 80, 50, CombineResult{Fresh: 50, Rotten: 80, TopUp: 50}},
		{"top-up limited by available fresh", 0, 0, 3, 10, 50, CombineResult{Fresh: 3, Rotten: 10, TopUp: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, res := Combine(examples(t, tt.realFresh, tt.realRotten), examples(t, tt.synFresh, tt.synRotten), tt.limit)
			assert.Equal(t, tt.want, res)
			assert.Len(t, out, res.Fresh+res.Rotten)
		})
	}
}

func TestCombineFiles_MissingRealFile(t *testing.T) {
	dir := t.TempDir()
	synthetic := filepath.Join(dir, "synthetic.jsonl")
	require.NoError(t, WriteJSONL(synthetic, examples(t, 4, 2)))
	out := filepath.Join(dir, "combined.jsonl")

	res, err := CombineFiles(filepath.Join(dir, "missing.jsonl"), synthetic, out, DefaultTopUpCap, logging.Discard())
	require.NoError(t, err)
	assert.Equal(t, CombineResult{Fresh: 2, Rotten: 2, TopUp: 2}, res)

	got, err := ReadJSONL(out)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestReadJSONL_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"messages\":[]}\n\n{oops\n"), 0o644))
	_, err := ReadJSONL(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":3:")
}

package sqlite

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/freshset/pkg/types"
)

func TestAddImage_Validation(t *testing.T) {
	b, _ := attachTemp(t)

	tests := []struct {
		name    string
		entry   *types.ImageEntry
		wantErr error
	}{
		{"nil entry", nil, types.ErrInvalidProduce},
		{"empty produce", &types.ImageEntry{State: types.StateFresh, Path: "p"}, types.ErrInvalidProduce},
		{"bad state", &types.ImageEntry{Produce: "apple", State: "moldy", Path: "p"}, types.ErrInvalidState},
		{"empty path", &types.ImageEntry{Produce: "apple", State: types.StateFresh}, types.ErrInvalidImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.AddImage(tt.entry)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAddImage_AssignsIDAndPersists(t *testing.T) {
	b, dir := attachTemp(t)

	entry := &types.ImageEntry{Produce: "banana", State: types.StateRotten, Path: "rotten/banana/b.json", Source: "download"}
	id, err := b.AddImage(entry)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, entry.ImageID)
	assert.False(t, entry.CreatedAt.IsZero())

	data, err := os.ReadFile(filepath.Join(dir, imagesJSONL))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], id)
	assert.Contains(t, lines[0], `"produce":"banana"`)
}

func TestAddImage_SamePathReplaces(t *testing.T) {
	b, _ := attachTemp(t)

	_, err := b.AddImage(&types.ImageEntry{Produce: "apple", State: types.StateFresh, Path: "same.json", SHA256: "aaa"})
	require.NoError(t, err)
	id2, err := b.AddImage(&types.ImageEntry{Produce: "apple", State: types.StateFresh, Path: "same.json", SHA256: "bbb"})
	require.NoError(t, err)

	all, err := b.ListImages(nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, id2, all[0].ImageID)
	assert.Equal(t, "bbb", all[0].SHA256)
}

func TestListImages_Filter(t *testing.T) {
	b, _ := attachTemp(t)

	seed := []types.ImageEntry{
		{Produce: "apple", State: types.StateFresh, Path: "1", Source: "generate"},
		{Produce: "apple", State: types.StateRotten, Path: "2", Source: "generate"},
		{Produce: "banana", State: types.StateFresh, Path: "3", Source: "download"},
	}
	for i := range seed {
		_, err := b.AddImage(&seed[i])
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter map[string]string
		want   int
	}{
		{"empty filter", nil, 3},
		{"by produce", map[string]string{"produce": "apple"}, 2},
		{"by state", map[string]string{"state": types.StateFresh}, 2},
		{"by produce and state", map[string]string{"produce": "apple", "state": types.StateRotten}, 1},
		{"by source", map[string]string{"source": "download"}, 1},
		{"no match", map[string]string{"produce": "kiwi"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.ListImages(tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	_, err := b.ListImages(map[string]string{"color": "red"})
	assert.ErrorIs(t, err, types.ErrInvalidFilter)
}

func TestGetAndDeleteImage(t *testing.T) {
	b, _ := attachTemp(t)

	_, err := b.GetImage("")
	assert.ErrorIs(t, err, types.ErrInvalidID)
	_, err = b.GetImage("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	id, err := b.AddImage(&types.ImageEntry{Produce: "kiwi", State: types.StateFresh, Path: "k.json"})
	require.NoError(t, err)

	require.NoError(t, b.DeleteImage(id))
	assert.ErrorIs(t, b.DeleteImage(id), types.ErrNotFound)
	_, err = b.GetImage(id)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSummary(t *testing.T) {
	b, _ := attachTemp(t)

	empty, err := b.Summary()
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalImages)
	assert.Contains(t, empty.Structure, types.StateFresh)
	assert.Contains(t, empty.Structure, types.StateRotten)

	for i, e := range []types.ImageEntry{
		{Produce: "apple", State: types.StateFresh},
		{Produce: "apple", State: types.StateFresh},
		{Produce: "apple", State: types.StateRotten},
		{Produce: "pear", State: types.StateRotten},
	} {
		e.Path = filepath.Join("p", string(rune('a'+i)))
		_, err := b.AddImage(&e)
		require.NoError(t, err)
	}

	s, err := b.Summary()
	require.NoError(t, err)
	assert.Equal(t, 4, s.TotalImages)
	assert.Equal(t, 2, s.Structure[types.StateFresh]["apple"])
	assert.Equal(t, 1, s.Structure[types.StateRotten]["pear"])
	assert.Equal(t, 2, s.Count(types.StateRotten))
}

func TestAddImages_SingleRewrite(t *testing.T) {
	b, dir := attachTemp(t)

	writes := 0
	orig := writeRecords
	writeRecords = func(path string, records []json.RawMessage) error {
		if filepath.Base(path) == imagesJSONL {
			writes++
		}
		return orig(path, records)
	}
	t.Cleanup(func() { writeRecords = orig })

	entries := make([]*types.ImageEntry, 50)
	for i := range entries {
		entries[i] = &types.ImageEntry{Produce: "apple", State: types.StateFresh, Path: fmt.Sprintf("fresh/apple/%02d.jpg", i)}
	}
	require.NoError(t, b.AddImages(entries))
	assert.Equal(t, 1, writes)
	for _, e := range entries {
		assert.NotEmpty(t, e.ImageID)
	}

	data, err := os.ReadFile(filepath.Join(dir, imagesJSONL))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 50)
}

func TestAddImages_InvalidEntryRejectsBatch(t *testing.T) {
	b, _ := attachTemp(t)

	err := b.AddImages([]*types.ImageEntry{
		{Produce: "apple", State: types.StateFresh, Path: "a.jpg"},
		{Produce: "apple", State: "moldy", Path: "b.jpg"},
	})
	assert.ErrorIs(t, err, types.ErrInvalidState)

	all, err := b.ListImages(nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLayout_DefaultsToCurrentDir(t *testing.T) {
	l := NewLayout("")
	assert.Equal(t, ".", l.Root)
	assert.Equal(t, CollectDirName, l.CollectDir())
}

func TestLayoutDirectories(t *testing.T) {
	l := NewLayout("/work")

	assert.Equal(t, "/work/global-training-data", l.CollectDir())
	assert.Equal(t, "/work/real-training-data", l.RawDir())
	assert.Equal(t, "/work/real-training-data/organized", l.OrganizedDir())
	assert.Equal(t, "/work/real-training-data/unified", l.UnifiedDir())
	assert.Equal(t, "/work/models", l.ModelDir())
	assert.Equal(t, "/work/.env.local", l.EnvFile())
}

func TestLayoutModelDir_Override(t *testing.T) {
	l := Layout{Root: "/work", Models: "/srv/freshset/models"}
	assert.Equal(t, "/srv/freshset/models", l.ModelDir())
	assert.Equal(t, "/work/real-training-data", l.RawDir())
}

func TestLayoutTrainingFiles_PreferenceOrder(t *testing.T) {
	l := NewLayout("/work")
	files := l.TrainingFiles()

	assert.Equal(t, []string{
		filepath.Join("/work/global-training-data", CombinedFile),
		filepath.Join("/work/global-training-data", RealImagesFile),
		filepath.Join("/work/global-training-data", TrainingFile),
	}, files)
}

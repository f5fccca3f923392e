package hub

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Kaggle defaults.
const (
	DefaultKaggleDataset = "sriramr/fruits-fresh-and-rotten-for-classification"
	DefaultKaggleDirName = "kaggle-original"
)

// Kaggle downloads datasets with the kaggle command-line tool. Credentials
// are read by the tool itself from ~/.kaggle/kaggle.json or the
// KAGGLE_USERNAME and KAGGLE_KEY environment variables.
type Kaggle struct {
	Binary string    // defaults to "kaggle"
	Output io.Writer // receives the tool's stdout and stderr; nil discards
	Logger *slog.Logger
}

// Download runs `kaggle datasets download -d <slug> -p <dir> --unzip` and
// returns the number of images found in dir afterwards.
func (k *Kaggle) Download(ctx context.Context, slug, dir string) (int, error) {
	if slug == "" {
		slug = DefaultKaggleDataset
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	bin := k.Binary
	if bin == "" {
		bin = "kaggle"
	}

	logger := k.logger()
	logger.Info("downloading kaggle dataset", "dataset", slug, "dir", dir)

	cmd := exec.CommandContext(ctx, bin, "datasets", "download", "-d", slug, "-p", dir, "--unzip")
	cmd.Stdout = k.Output
	cmd.Stderr = k.Output
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("kaggle download %s: %w (check your Kaggle credentials)", slug, err)
	}

	n, err := CountImages(dir)
	if err != nil {
		return 0, err
	}
	logger.Info("kaggle dataset downloaded", "images", n, "dir", dir)
	return n, nil
}

// CountImages counts .jpg, .jpeg and .png files under dir.
func CountImages(dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jpg", ".jpeg", ".png":
			n++
		}
		return nil
	})
	return n, err
}

func (k *Kaggle) logger() *slog.Logger {
	if k.Logger != nil {
		return k.Logger
	}
	return slog.Default()
}

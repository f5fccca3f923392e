package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/freshset/internal/collect"
)

type initResult struct {
	ConfigFile  string   `json:"config_file"`
	SourcesFile string   `json:"sources_file"`
	DataDir     string   `json:"data_dir"`
	Workspace   string   `json:"workspace"`
	Created     []string `json:"created_dirs"`
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize freshset configuration, catalog and workspace",
		Long: "Create config.yaml and sources.yaml in the config directory, the catalog in\n" +
			"the data directory, and the dataset directories of the workspace.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd)
		},
	}
}

func (a *app) runInit(cmd *cobra.Command) error {
	res := initResult{ConfigFile: filepath.Join(a.configDir, configFileExt)}

	res.SourcesFile = filepath.Join(a.configDir, sourcesFileExt)
	if _, err := os.Stat(res.SourcesFile); os.IsNotExist(err) {
		if err := collect.DefaultSources().Save(res.SourcesFile); err != nil {
			return sysError(fmt.Errorf("write sources: %w", err))
		}
	}

	layout := a.layout()
	res.Workspace = layout.Root
	for _, dir := range []string{layout.CollectDir(), layout.RawDir(), layout.ModelDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return sysError(fmt.Errorf("create %s: %w", dir, err))
		}
		res.Created = append(res.Created, dir)
	}

	backend, err := a.attachCatalog()
	if err != nil {
		return err
	}
	res.DataDir = backend.DataDir()
	if err := backend.Detach(); err != nil {
		return sysError(fmt.Errorf("finalize catalog: %w", err))
	}

	return a.emit(cmd, res, func(w io.Writer) {
		fmt.Fprintln(w, "freshset initialized")
		fmt.Fprintf(w, "  config:    %s\n  sources:   %s\n  catalog:   %s\n  workspace: %s\n",
			res.ConfigFile, res.SourcesFile, res.DataDir, res.Workspace)
	})
}

// Package paths resolves where freshset keeps its configuration, its
// catalog, the dataset workspace and the trained model.
//
// Every location follows the same chain: command-line flag, then
// config.yaml, then a FRESHSET_* environment variable, then a default. The
// config directory has no config.yaml entry since it holds config.yaml.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "freshset"

// DefaultDataDirName is the catalog directory created in the current
// directory when nothing else names one.
const DefaultDataDirName = ".freshset-db"

// Environment variables consulted after flags and config.yaml.
const (
	EnvConfigDir = "FRESHSET_CONFIG_DIR"
	EnvDataDir   = "FRESHSET_DATA_DIR"
	EnvWorkspace = "FRESHSET_WORKSPACE"
	EnvModelDir  = "FRESHSET_MODEL_DIR"
)

// Origin names the link of the chain a location was taken from.
type Origin string

const (
	FromFlag    Origin = "flag"
	FromConfig  Origin = "config"
	FromEnv     Origin = "env"
	FromDefault Origin = "default"
)

// Location is a resolved absolute directory.
type Location struct {
	Path   string
	Origin Origin
}

// Dirs holds the directories one source names. Empty fields defer to the
// next source.
type Dirs struct {
	DataDir   string
	Workspace string
	ModelDir  string
}

// Locations are the resolved directories of one invocation.
type Locations struct {
	Data      Location
	Workspace Location
	Models    Location
}

// Layout returns the dataset layout rooted at the workspace with the
// resolved model directory.
func (l *Locations) Layout() Layout {
	return Layout{Root: l.Workspace.Path, Models: l.Models.Path}
}

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific configuration directory:
// $XDG_CONFIG_HOME/freshset or ~/.config/freshset on Linux, and
// os.UserConfigDir()/freshset elsewhere.
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", appName), nil
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// ResolveConfigDir returns flag > FRESHSET_CONFIG_DIR > DefaultConfigDir().
func ResolveConfigDir(flag string) (Location, error) {
	return first(flag, "", EnvConfigDir, DefaultConfigDir)
}

// Resolve resolves the catalog, workspace and model directories from the
// flag values and the config.yaml values. The workspace defaults to the
// current directory, the catalog to ./.freshset-db and the model directory
// to <workspace>/models.
func Resolve(flags, config Dirs) (*Locations, error) {
	var (
		loc Locations
		err error
	)
	loc.Workspace, err = first(flags.Workspace, config.Workspace, EnvWorkspace, os.Getwd)
	if err != nil {
		return nil, err
	}
	loc.Data, err = first(flags.DataDir, config.DataDir, EnvDataDir, func() (string, error) {
		cwd, err := os.Getwd()
		return filepath.Join(cwd, DefaultDataDirName), err
	})
	if err != nil {
		return nil, err
	}
	loc.Models, err = first(flags.ModelDir, config.ModelDir, EnvModelDir, func() (string, error) {
		return filepath.Join(loc.Workspace.Path, ModelDirName), nil
	})
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

type link struct {
	value  string
	origin Origin
}

// first walks one chain and returns the first non-empty link as an
// absolute path.
func first(flag, config, env string, fallback func() (string, error)) (Location, error) {
	for _, l := range []link{{flag, FromFlag}, {config, FromConfig}, {os.Getenv(env), FromEnv}} {
		if l.value == "" {
			continue
		}
		abs, err := filepath.Abs(l.value)
		if err != nil {
			return Location{}, err
		}
		return Location{Path: abs, Origin: l.origin}, nil
	}
	dir, err := fallback()
	if err != nil {
		return Location{}, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Location{}, err
	}
	return Location{Path: abs, Origin: FromDefault}, nil
}

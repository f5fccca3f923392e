package paths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every FRESHSET_* location variable for the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvConfigDir, EnvDataDir, EnvWorkspace, EnvModelDir} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfigDir(t *testing.T) {
	if runtime.GOOS == "linux" {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-config/freshset", got)

		t.Setenv("XDG_CONFIG_HOME", "")
	}

	orig := platformDir
	t.Cleanup(func() { platformDir = orig })
	platformDir.homeDir = func() (string, error) { return "/home/grocer", nil }
	platformDir.userConfigDir = func() (string, error) { return "/cfg", nil }

	got, err := DefaultConfigDir()
	require.NoError(t, err)
	if runtime.GOOS == "linux" {
		assert.Equal(t, "/home/grocer/.config/freshset", got)
	} else {
		assert.Equal(t, filepath.Join("/cfg", "freshset"), got)
	}
}

func TestDefaultConfigDir_HomeError(t *testing.T) {
	orig := platformDir
	t.Cleanup(func() { platformDir = orig })
	boom := errors.New("no home")
	platformDir.homeDir = func() (string, error) { return "", boom }
	platformDir.userConfigDir = func() (string, error) { return "", boom }
	t.Setenv("XDG_CONFIG_HOME", "")

	_, err := DefaultConfigDir()
	assert.ErrorIs(t, err, boom)
}

func TestResolveConfigDir(t *testing.T) {
	tests := []struct {
		name   string
		flag   string
		env    string
		want   string
		origin Origin
	}{
		{"flag wins over env", "/explicit/config", "/env/config", "/explicit/config", FromFlag},
		{"env when no flag", "", "/env/config", "/env/config", FromEnv},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.env)
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Path)
			assert.Equal(t, tt.origin, got.Origin)
		})
	}

	t.Run("platform default", func(t *testing.T) {
		t.Setenv(EnvConfigDir, "")
		got, err := ResolveConfigDir("")
		require.NoError(t, err)
		assert.Equal(t, FromDefault, got.Origin)
		assert.Equal(t, "freshset", filepath.Base(got.Path))
	})
}

func TestResolve_Workspace(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name   string
		flag   string
		config string
		env    string
		want   string
		origin Origin
	}{
		{"flag wins over all", "/flag/ws", "/config/ws", "/env/ws", "/flag/ws", FromFlag},
		{"config wins over env", "", "/config/ws", "/env/ws", "/config/ws", FromConfig},
		{"env when flag and config empty", "", "", "/env/ws", "/env/ws", FromEnv},
		{"current directory by default", "", "", "", cwd, FromDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvWorkspace, tt.env)
			loc, err := Resolve(Dirs{Workspace: tt.flag}, Dirs{Workspace: tt.config})
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc.Workspace.Path)
			assert.Equal(t, tt.origin, loc.Workspace.Origin)
		})
	}
}

func TestResolve_DataDir(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name   string
		flag   string
		config string
		env    string
		want   string
		origin Origin
	}{
		{"flag wins over all", "/flag/data", "/config/data", "/env/data", "/flag/data", FromFlag},
		{"config wins over env", "", "/config/data", "/env/data", "/config/data", FromConfig},
		{"env when flag and config empty", "", "", "/env/data", "/env/data", FromEnv},
		{"catalog under the current directory", "", "", "", filepath.Join(cwd, DefaultDataDirName), FromDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvDataDir, tt.env)
			// The catalog does not follow the workspace.
			loc, err := Resolve(Dirs{DataDir: tt.flag, Workspace: "/ws"}, Dirs{DataDir: tt.config})
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc.Data.Path)
			assert.Equal(t, tt.origin, loc.Data.Origin)
		})
	}
}

func TestResolve_ModelDir(t *testing.T) {
	tests := []struct {
		name   string
		flag   string
		config string
		env    string
		want   string
		origin Origin
	}{
		{"flag wins over all", "/flag/models", "/config/models", "/env/models", "/flag/models", FromFlag},
		{"config wins over env", "", "/config/models", "/env/models", "/config/models", FromConfig},
		{"env when flag and config empty", "", "", "/env/models", "/env/models", FromEnv},
		{"models under the workspace", "", "", "", "/ws/models", FromDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvModelDir, tt.env)
			loc, err := Resolve(Dirs{ModelDir: tt.flag}, Dirs{ModelDir: tt.config, Workspace: "/ws"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc.Models.Path)
			assert.Equal(t, tt.origin, loc.Models.Origin)
		})
	}
}

func TestResolve_RelativePathsBecomeAbsolute(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvModelDir, "relative/models")
	loc, err := Resolve(Dirs{Workspace: "relative/ws"}, Dirs{DataDir: "relative/data"})
	require.NoError(t, err)

	for _, p := range []string{loc.Workspace.Path, loc.Data.Path, loc.Models.Path} {
		assert.True(t, filepath.IsAbs(p), "expected absolute path, got %s", p)
	}
	assert.Equal(t, "ws", filepath.Base(loc.Workspace.Path))
	assert.Equal(t, FromEnv, loc.Models.Origin)
}

func TestLocations_Layout(t *testing.T) {
	clearEnv(t)
	loc, err := Resolve(Dirs{Workspace: "/ws", ModelDir: "/srv/models"}, Dirs{})
	require.NoError(t, err)

	l := loc.Layout()
	assert.Equal(t, "/ws", l.Root)
	assert.Equal(t, "/srv/models", l.ModelDir())
	assert.Equal(t, "/ws/real-training-data/organized", l.OrganizedDir())
}

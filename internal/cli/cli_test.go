package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/freshset/internal/paths"
	"github.com/mesh-intelligence/freshset/internal/train"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// testEnv isolates config, catalog and workspace in temp directories.
type testEnv struct {
	ConfigDir string
	DataDir   string
	Workspace string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	return &testEnv{
		ConfigDir: filepath.Join(root, "config"),
		DataDir:   filepath.Join(root, "data"),
		Workspace: filepath.Join(root, "workspace"),
	}
}

// run executes the CLI with the env's directories and returns stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{
		"--config-dir", e.ConfigDir,
		"--data-dir", e.DataDir,
		"--workspace", e.Workspace,
		"--log-level", "error",
	}, args...))
	err := root.Execute()
	return stdout.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err)
	return out
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1<<20), 1<<24)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) > 0 {
			n++
		}
	}
	require.NoError(t, sc.Err())
	return n
}

func writeSolidPNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, c)
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestVersion(t *testing.T) {
	out := newTestEnv(t).mustRun(t, "version")
	assert.Contains(t, out, "freshset v"+Version)
	assert.Contains(t, out, modulePath)
}

func TestInit(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun(t, "--json", "init")

	var res initResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.FileExists(t, filepath.Join(env.ConfigDir, configFileExt))
	assert.FileExists(t, filepath.Join(env.ConfigDir, sourcesFileExt))
	assert.FileExists(t, filepath.Join(env.DataDir, "images.jsonl"))
	assert.DirExists(t, filepath.Join(env.Workspace, paths.CollectDirName))
	assert.DirExists(t, filepath.Join(env.Workspace, paths.ModelDirName))

	cfg, err := os.ReadFile(filepath.Join(env.ConfigDir, configFileExt))
	require.NoError(t, err)
	assert.Contains(t, string(cfg), "backend: sqlite")
	assert.Contains(t, string(cfg), "poll_interval: 1m0s")

	// Running init again keeps the existing files.
	env.mustRun(t, "init")
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("FRESHSET_LOG_LEVEL", "debug")
	t.Setenv("FRESHSET_DATA_DIR", "/ignored/by/viper")
	v, err := loadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "debug", v.GetString(cfgKeyLogLevel))
	assert.Empty(t, v.GetString(cfgKeyDataDir))
	assert.Equal(t, 10, v.GetInt(cfgKeyPerState))
}

func TestCollectGenerate_FormatsAndCombines(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun(t, "--json", "collect", "generate", "--produce", "apple,banana", "--per-state", "2")

	var res collectResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 8, res.Samples)
	assert.Equal(t, 4, res.Fresh)
	assert.Equal(t, 4, res.Rotten)
	assert.FileExists(t, res.Metadata)
	assert.Equal(t, 8, res.TrainingLines)
	assert.Equal(t, 8, countLines(t, res.TrainingFile))
	assert.Equal(t, 8, countLines(t, filepath.Join(env.DataDir, "images.jsonl")))

	out = env.mustRun(t, "--json", "finetune", "combine")
	var combined struct {
		Fresh  int `json:"fresh"`
		Rotten int `json:"rotten"`
		TopUp  int `json:"synthetic_top_up"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &combined))
	assert.Equal(t, 4, combined.Rotten)
	assert.Equal(t, 4, combined.TopUp)
	assert.Equal(t, 8, countLines(t, filepath.Join(env.Workspace, paths.CollectDirName, paths.CombinedFile)))

	out = env.mustRun(t, "finetune", "format", "--source", "generated")
	assert.Contains(t, out, "8 examples written")
}

func TestFinetuneFormat_UnknownSource(t *testing.T) {
	_, err := newTestEnv(t).run(t, "finetune", "format", "--source", "scraped")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestFinetuneManage_RequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	env := newTestEnv(t)

	_, err := env.run(t, "finetune", "list")
	assert.ErrorIs(t, err, types.ErrAPIKeyMissing)
	assert.Equal(t, exitUserError, exitCode(err))

	_, err = env.run(t, "finetune", "manage", "rebuild")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")

	_, err = env.run(t, "finetune", "manage", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a job id")
}

func TestOrganizeTrainPredict(t *testing.T) {
	env := newTestEnv(t)
	raw := filepath.Join(env.Workspace, paths.RawDirName, "fruits-dataset")
	for i := 0; i < 8; i++ {
		writeSolidPNG(t, filepath.Join(raw, "freshapples", fmt.Sprintf("a%d.png", i)),
			color.RGBA{R: uint8(30 + 4*i), G: 190, B: 40, A: 255})
		writeSolidPNG(t, filepath.Join(raw, "rottenapples", fmt.Sprintf("a%d.png", i)),
			color.RGBA{R: uint8(70 + 2*i), G: 45, B: 20, A: 255})
	}
	writeSolidPNG(t, filepath.Join(raw, "misc", "rock.png"), color.RGBA{A: 255})

	out := env.mustRun(t, "--json", "organize")
	var md types.DatasetMetadata
	require.NoError(t, json.Unmarshal([]byte(out), &md))
	assert.Equal(t, 16, md.DatasetInfo.TotalImages)

	out = env.mustRun(t, "--json", "train", "--epochs", "60", "--learning-rate", "0.05", "--patience", "15", "--hidden", "8")
	var info train.Info
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, 16, info.TrainSamples+info.ValSamples)
	assert.FileExists(t, filepath.Join(env.Workspace, paths.ModelDirName, train.WeightsFile))

	sample := filepath.Join(env.Workspace, paths.RawDirName, paths.OrganizedDirName, types.StateFresh, "apple", "fruits-dataset_0000.jpg")
	out = env.mustRun(t, "--json", "predict", sample)
	var preds []predictResult
	require.NoError(t, json.Unmarshal([]byte(out), &preds))
	require.Len(t, preds, 1)
	assert.Empty(t, preds[0].Error)
	assert.Contains(t, []string{types.StateFresh, types.StateRotten}, preds[0].Classification)

	env.mustRun(t, "--json", "unify", "--produce", "apple")
	assert.FileExists(t, filepath.Join(env.Workspace, paths.RawDirName, paths.UnifiedDirName, paths.UnifiedSummaryFile))
}

func TestPredict_NoModel(t *testing.T) {
	_, err := newTestEnv(t).run(t, "predict", "x.jpg")
	assert.ErrorIs(t, err, types.ErrModelNotTrained)
	assert.Equal(t, exitUserError, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitSysError, exitCode(sysError(errors.New("disk full"))))
	assert.Equal(t, exitSysError, exitCode(errors.New("connection reset by peer")))
	assert.Equal(t, exitUserError, exitCode(userError(errors.New("bad flag"))))
	assert.Equal(t, exitUserError, exitCode(fmt.Errorf("wrap: %w", types.ErrEmptyDataset)))
	assert.Equal(t, exitUserError, exitCode(sysError(types.ErrNoTrainingData)))
	assert.Nil(t, sysError(nil))
	assert.Nil(t, userError(nil))
}

func TestExitCode_CommandLineMistakes(t *testing.T) {
	env := newTestEnv(t)
	for _, args := range [][]string{
		{"no-such-command"},
		{"train", "--no-such-flag"},
		{"predict"},
		{"finetune", "status"},
		{"finetune", "manage", "rebuild"},
		{"finetune", "format", "--source", "scraped"},
	} {
		_, err := env.run(t, args...)
		require.Error(t, err, args)
		assert.Equal(t, exitUserError, exitCode(err), args)
	}
}

func TestExitCode_RemoteFailureIsSystemError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", srv.URL)

	_, err := newTestEnv(t).run(t, "finetune", "list")
	require.Error(t, err)
	assert.Equal(t, exitSysError, exitCode(err))
}

// runBare executes the CLI with only the given arguments.
func runBare(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return stdout.String(), err
}

func TestWorkspaceFromEnvModelsFromConfig(t *testing.T) {
	env := newTestEnv(t)
	models := filepath.Join(t.TempDir(), "shared-models")
	t.Setenv(paths.EnvWorkspace, env.Workspace)
	t.Setenv(paths.EnvDataDir, "")
	t.Setenv(paths.EnvModelDir, filepath.Join(t.TempDir(), "ignored"))

	require.NoError(t, os.MkdirAll(env.ConfigDir, 0o755))
	cfg := fmt.Sprintf("backend: sqlite\ntrain:\n  model_dir: %s\n", models)
	require.NoError(t, os.WriteFile(filepath.Join(env.ConfigDir, configFileExt), []byte(cfg), 0o644))

	out, err := runBare(t, "--config-dir", env.ConfigDir, "--data-dir", env.DataDir, "--json", "init")
	require.NoError(t, err)
	var res initResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, env.Workspace, res.Workspace)
	assert.Contains(t, res.Created, models)
	assert.DirExists(t, filepath.Join(env.Workspace, paths.RawDirName))

	_, err = runBare(t, "--config-dir", env.ConfigDir, "--data-dir", env.DataDir, "predict", "x.jpg")
	assert.ErrorIs(t, err, types.ErrModelNotTrained)
	assert.Contains(t, err.Error(), models)
}

func TestWorkspaceFlagBeatsEnv(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv(paths.EnvWorkspace, filepath.Join(t.TempDir(), "env-workspace"))
	t.Setenv(paths.EnvModelDir, "")

	out := env.mustRun(t, "--json", "init")
	var res initResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, env.Workspace, res.Workspace)
	assert.Contains(t, res.Created, filepath.Join(env.Workspace, paths.ModelDirName))
}

func TestCollectSynthetic(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun(t, "--json", "collect", "synthetic", "--produce", "apple,kiwi", "--per-state", "3")

	var res syntheticResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 12, res.Images)
	organized := filepath.Join(env.Workspace, paths.RawDirName, paths.OrganizedDirName)
	assert.Equal(t, organized, res.Output)
	assert.FileExists(t, filepath.Join(organized, paths.OrganizedMetaFile))
	assert.Equal(t, 12, res.Metadata.DatasetInfo.TotalImages)

	samples, err := train.LoadDataset(organized)
	require.NoError(t, err)
	assert.Len(t, samples, 12)
}

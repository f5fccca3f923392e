// Package cli implements the freshset command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/freshset/internal/finetune"
	"github.com/mesh-intelligence/freshset/internal/imageproc"
	"github.com/mesh-intelligence/freshset/internal/logging"
	"github.com/mesh-intelligence/freshset/internal/paths"
	"github.com/mesh-intelligence/freshset/internal/sqlite"
	"github.com/mesh-intelligence/freshset/internal/train"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// app holds global flag values and the state shared by subcommands.
type app struct {
	configDir string
	dataDir   string
	workspace string
	jsonMode  bool
	logLevel  string
	logFormat string

	cfg    *viper.Viper
	logger *slog.Logger
	loc    *paths.Locations
}

// NewRootCmd creates the top-level "freshset" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "freshset",
		Short: "Build and train on fresh/rotten produce image datasets",
		Long: "freshset collects produce images, organizes third-party datasets,\n" +
			"prepares fine-tuning files for a hosted vision model and trains a\n" +
			"local freshness classifier.",
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		// An explicit Args keeps cobra from rejecting unknown commands before
		// the validator below can mark them.
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return userError(err) })

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.dataDir, "data-dir", "", "catalog data directory (default: $(CWD)/.freshset-db)")
	pf.StringVar(&a.workspace, "workspace", "", "dataset workspace root (default: config workspace, $FRESHSET_WORKSPACE or CWD)")
	pf.BoolVar(&a.jsonMode, "json", false, "output in JSON format")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newCollectCmd(a))
	root.AddCommand(newOrganizeCmd(a))
	root.AddCommand(newUnifyCmd(a))
	root.AddCommand(newHubCmd(a))
	root.AddCommand(newFinetuneCmd(a))
	root.AddCommand(newTrainCmd(a))
	root.AddCommand(newPredictCmd(a))
	root.AddCommand(newServeCmd(a))
	markArgErrors(root)
	return root
}

// markArgErrors wraps the argument validators of cmd and its subcommands so
// that wrong arguments exit as user errors.
func markArgErrors(cmd *cobra.Command) {
	if validate := cmd.Args; validate != nil {
		cmd.Args = func(c *cobra.Command, args []string) error {
			return userError(validate(c, args))
		}
	}
	for _, sub := range cmd.Commands() {
		markArgErrors(sub)
	}
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return exitSuccess
}

// setup loads config.yaml and builds the logger before any subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" || !cmd.HasParent() {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	a.configDir = configDir.Path

	v, err := loadConfig(a.configDir)
	if err != nil {
		return sysError(err)
	}
	a.cfg = v

	level := a.logLevel
	if level == "" {
		level = v.GetString(cfgKeyLogLevel)
	}
	format := a.logFormat
	if format == "" {
		format = v.GetString(cfgKeyLogFormat)
	}
	a.logger = logging.New(logging.Options{Level: level, Format: format})

	loc, err := paths.Resolve(
		paths.Dirs{DataDir: a.dataDir, Workspace: a.workspace},
		paths.Dirs{DataDir: v.GetString(cfgKeyDataDir), Workspace: v.GetString(cfgKeyWorkspace), ModelDir: v.GetString(cfgKeyModelDir)},
	)
	if err != nil {
		return sysError(fmt.Errorf("resolve directories: %w", err))
	}
	a.loc = loc
	a.logger.Debug("resolved directories",
		"config", a.configDir, "config_from", configDir.Origin,
		"workspace", loc.Workspace.Path, "workspace_from", loc.Workspace.Origin,
		"data", loc.Data.Path, "data_from", loc.Data.Origin,
		"models", loc.Models.Path, "models_from", loc.Models.Origin)
	return nil
}

// layout returns the dataset layout of the resolved workspace.
func (a *app) layout() paths.Layout {
	return a.loc.Layout()
}

// attachCatalog attaches the SQLite catalog in the resolved data directory.
// The caller must defer Detach.
func (a *app) attachCatalog() (*sqlite.Backend, error) {
	backend := sqlite.NewBackend()
	if err := backend.Attach(types.Config{Backend: a.cfg.GetString(cfgKeyBackend), DataDir: a.loc.Data.Path}); err != nil {
		return nil, sysError(fmt.Errorf("attach catalog: %w", err))
	}
	return backend, nil
}

// exitError carries the exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// sysError marks err as an environment or I/O failure (exit code 2).
func sysError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: exitSysError, err: err}
}

// userError marks err as caused by the command line or its inputs (exit
// code 1).
func userError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: exitUserError, err: err}
}

// userErrors are sentinels caused by input or dataset state rather than
// the environment.
var userErrors = []error{
	types.ErrEmptyDataset,
	types.ErrNoTrainingData,
	types.ErrAPIKeyMissing,
	types.ErrInvalidState,
	types.ErrInvalidProduce,
	types.ErrInvalidImage,
	types.ErrInvalidFilter,
	types.ErrInvalidID,
	types.ErrNotFound,
	types.ErrModelNotTrained,
	types.ErrBackendEmpty,
	types.ErrBackendUnknown,
	imageproc.ErrEmptyImage,
	imageproc.ErrInvalidDataURL,
	finetune.ErrMalformedExample,
	train.ErrSingleClass,
	train.ErrIncompatibleModel,
}

// exitCode maps an error to a process exit code. Errors nobody classified
// come from the network, the disk or a remote API and exit as system
// errors.
func exitCode(err error) int {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitSysError
}

// out returns the command's stdout writer.
func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

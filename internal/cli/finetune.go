package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/freshset/internal/collect"
	"github.com/mesh-intelligence/freshset/internal/finetune"
	"github.com/mesh-intelligence/freshset/internal/paths"
	"github.com/mesh-intelligence/freshset/internal/sqlite"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

// sourceAliases maps the short --source names to catalog sources.
var sourceAliases = map[string]string{
	"generated":  collect.SourceGenerated,
	"downloaded": collect.SourceDownloaded,
}

func newFinetuneCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finetune",
		Short: "Prepare training files and manage hosted fine-tuning jobs",
		Long: "Finetune formats records as chat-style JSONL examples and drives the\n" +
			"OpenAI fine-tuning API. OPENAI_API_KEY must be set for the API commands.",
	}
	cmd.AddCommand(newFormatCmd(a))
	cmd.AddCommand(newCombineCmd(a))
	cmd.AddCommand(newManageCmd(a))
	for _, action := range manageActions {
		cmd.AddCommand(newActionCmd(a, action))
	}
	return cmd
}

func newFormatCmd(a *app) *cobra.Command {
	var source, output string
	cmd := &cobra.Command{
		Use:   "format",
		Short: "Format catalogued records into a fine-tuning JSONL file",
		RunE: func(cmd *cobra.Command, args []string) error {
			src, ok := sourceAliases[source]
			if !ok {
				return userError(fmt.Errorf("unknown source %q (valid: generated, downloaded)", source))
			}
			if output == "" {
				name := paths.TrainingFile
				if src == collect.SourceDownloaded {
					name = paths.RealImagesFile
				}
				output = filepath.Join(a.layout().CollectDir(), name)
			}

			backend, err := a.attachCatalog()
			if err != nil {
				return err
			}
			defer backend.Detach()

			n, err := finetune.FormatFromCatalog(backend, src, output, a.logger)
			if err != nil {
				return err
			}
			res := map[string]any{"training_file": output, "examples": n}
			return a.emit(cmd, res, func(w io.Writer) {
				fmt.Fprintf(w, "%d examples written to %s\n", n, output)
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "generated", "records to format: generated or downloaded")
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination JSONL file")
	return cmd
}

func newCombineCmd(a *app) *cobra.Command {
	var realPath, synthPath, output string
	var limit int
	cmd := &cobra.Command{
		Use:   "combine",
		Short: "Combine real fresh and synthetic rotten examples into a balanced file",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.layout().CollectDir()
			if realPath == "" {
				realPath = filepath.Join(dir, paths.RealImagesFile)
			}
			if synthPath == "" {
				synthPath = filepath.Join(dir, paths.TrainingFile)
			}
			if output == "" {
				output = filepath.Join(dir, paths.CombinedFile)
			}
			res, err := finetune.CombineFiles(realPath, synthPath, output, limit, a.logger)
			if err != nil {
				return err
			}
			return a.emit(cmd, res, func(w io.Writer) {
				fmt.Fprintf(w, "%d fresh (%d synthetic top-up) and %d rotten examples written to %s\n",
					res.Fresh, res.TopUp, res.Rotten, output)
			})
		},
	}
	cmd.Flags().StringVar(&realPath, "real", "", "real-image JSONL (default: openai_training_data_with_real_images.jsonl)")
	cmd.Flags().StringVar(&synthPath, "synthetic", "", "synthetic JSONL (default: openai_training_data.jsonl)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination (default: openai_training_data_combined.jsonl)")
	cmd.Flags().IntVar(&limit, "cap", finetune.DefaultTopUpCap, "maximum synthetic fresh examples added")
	return cmd
}

// manageAction is one fine-tuning management operation.
type manageAction struct {
	name  string
	short string
	arg   string // "job-id", "model" or "" when no argument is taken
	run   func(a *app, cmd *cobra.Command, m *finetune.Manager, arg string) error
}

var manageActions = []manageAction{
	{"upload", "Upload the preferred training file", "", runUpload},
	{"create", "Upload the training file and start a fine-tuning job", "model", runCreate},
	{"status", "Show the status of a job", "job-id", runStatus},
	{"list", "List recent fine-tuning jobs", "", runList},
	{"cancel", "Cancel a running job", "job-id", runCancel},
	{"complete-flow", "Upload, create, wait for completion and save the model id", "model", runCompleteFlow},
}

func findAction(name string) (manageAction, bool) {
	for _, act := range manageActions {
		if act.name == name {
			return act, true
		}
	}
	return manageAction{}, false
}

func actionNames() string {
	names := make([]string, len(manageActions))
	for i, act := range manageActions {
		names[i] = act.name
	}
	return strings.Join(names, ", ")
}

func newActionCmd(a *app, act manageAction) *cobra.Command {
	use := act.name
	args := cobra.NoArgs
	switch act.arg {
	case "job-id":
		use += " <job-id>"
		args = cobra.ExactArgs(1)
	case "model":
		use += " [model]"
		args = cobra.MaximumNArgs(1)
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: act.short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			var arg string
			if len(args) > 0 {
				arg = args[0]
			}
			return a.runAction(cmd, act, arg)
		},
	}
	if act.name == "status" {
		cmd.Flags().Bool("wait", false, "poll until the job reaches a terminal status")
	}
	return cmd
}

func newManageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "manage <action> [job-id|model]",
		Short: "Run a management action: " + actionNames(),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			act, ok := findAction(args[0])
			if !ok {
				return userError(fmt.Errorf("unknown action %q (valid: %s)", args[0], actionNames()))
			}
			var arg string
			if len(args) > 1 {
				arg = args[1]
			}
			if act.arg == "job-id" && arg == "" {
				return userError(fmt.Errorf("action %s requires a job id", act.name))
			}
			return a.runAction(cmd, act, arg)
		},
	}
}

// runAction builds the manager and runs act.
func (a *app) runAction(cmd *cobra.Command, act manageAction, arg string) error {
	client, err := finetune.NewClient()
	if err != nil {
		return err
	}
	backend, err := a.attachCatalog()
	if err != nil {
		return err
	}
	defer backend.Detach()

	m := a.manager(client, backend)
	return act.run(a, cmd, m, arg)
}

func (a *app) manager(api finetune.API, store *sqlite.Backend) *finetune.Manager {
	return &finetune.Manager{
		API:          api,
		Store:        store,
		Layout:       a.layout(),
		PollInterval: a.cfg.GetDuration(cfgKeyPollInterval),
		Logger:       a.logger,
	}
}

func (a *app) model(arg string) string {
	if arg != "" {
		return arg
	}
	return a.cfg.GetString(cfgKeyBaseModel)
}

func runUpload(a *app, cmd *cobra.Command, m *finetune.Manager, _ string) error {
	id, err := m.Upload(cmd.Context())
	if err != nil {
		return err
	}
	return a.emit(cmd, map[string]string{"file_id": id}, func(w io.Writer) {
		fmt.Fprintf(w, "uploaded training file: %s\n", id)
	})
}

func runCreate(a *app, cmd *cobra.Command, m *finetune.Manager, arg string) error {
	job, err := m.Create(cmd.Context(), a.model(arg))
	if err != nil {
		return err
	}
	return a.emitJob(cmd, job)
}

func runStatus(a *app, cmd *cobra.Command, m *finetune.Manager, id string) error {
	var (
		job *types.FineTuneJob
		err error
	)
	if wait, _ := cmd.Flags().GetBool("wait"); wait {
		job, err = m.Wait(cmd.Context(), id)
	} else {
		job, err = m.Status(cmd.Context(), id)
	}
	if err != nil {
		return err
	}
	if err := m.Publish(job); err != nil {
		return sysError(err)
	}
	return a.emitJob(cmd, job)
}

func runList(a *app, cmd *cobra.Command, m *finetune.Manager, _ string) error {
	jobs, err := m.List(cmd.Context())
	if err != nil {
		return err
	}
	return a.emit(cmd, jobs, func(w io.Writer) {
		if len(jobs) == 0 {
			fmt.Fprintln(w, "no fine-tuning jobs")
			return
		}
		rows := make([][]any, len(jobs))
		for i, j := range jobs {
			rows[i] = []any{j.JobID, j.Status, j.BaseModel, orDash(j.FineTunedModel), j.CreatedAt.Format(time.DateTime)}
		}
		table(w, "JOB\tSTATUS\tBASE MODEL\tFINE-TUNED MODEL\tCREATED", rows)
	})
}

func runCancel(a *app, cmd *cobra.Command, m *finetune.Manager, id string) error {
	job, err := m.Cancel(cmd.Context(), id)
	if err != nil {
		return err
	}
	return a.emitJob(cmd, job)
}

func runCompleteFlow(a *app, cmd *cobra.Command, m *finetune.Manager, arg string) error {
	job, err := m.CompleteFlow(cmd.Context(), a.model(arg))
	if job != nil {
		if emitErr := a.emitJob(cmd, job); emitErr != nil && err == nil {
			err = emitErr
		}
	}
	return err
}

func (a *app) emitJob(cmd *cobra.Command, job *types.FineTuneJob) error {
	return a.emit(cmd, job, func(w io.Writer) {
		fmt.Fprintf(w, "job:        %s\nstatus:     %s\nbase model: %s\n", job.JobID, job.Status, job.BaseModel)
		if job.FineTunedModel != "" {
			fmt.Fprintf(w, "model:      %s\n", job.FineTunedModel)
		}
		if job.Error != "" {
			fmt.Fprintf(w, "error:      %s\n", job.Error)
		}
	})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

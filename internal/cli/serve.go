package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/freshset/internal/server"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, modelDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classifier and dataset summary over HTTP",
		Long: "Serve exposes GET /api/health, POST /api/analyze, POST /api/analyze-batch\n" +
			"and GET /api/dataset/summary. Without a trained model the analyze routes\n" +
			"answer 503.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.GetString(cfgKeyServerAddr)
			}
			deps := server.Dependencies{Version: Version, Logger: a.logger}

			model, err := a.loadModel(modelDir)
			switch {
			case err == nil:
				deps.Classifier = model
			case errors.Is(err, types.ErrModelNotTrained):
				a.logger.Warn("serving without a model", "error", err)
			default:
				return err
			}

			backend, err := a.attachCatalog()
			if err != nil {
				return err
			}
			defer backend.Detach()
			deps.Catalog = backend

			return server.Run(cmd.Context(), addr, server.New(deps), a.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: config server.addr)")
	cmd.Flags().StringVar(&modelDir, "model-dir", "", "model directory (default: train.model_dir, $FRESHSET_MODEL_DIR or <workspace>/models)")
	return cmd
}

package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/freshset/internal/fetch"
	"github.com/mesh-intelligence/freshset/internal/hub"
)

func newHubCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hub",
		Short: "Download third-party fresh/rotten datasets",
	}
	cmd.AddCommand(newHubHFCmd(a))
	cmd.AddCommand(newHubKaggleCmd(a))
	return cmd
}

func newHubHFCmd(a *app) *cobra.Command {
	var opts hub.HFOptions
	cmd := &cobra.Command{
		Use:   "hf",
		Short: "Download a Hugging Face image dataset through the datasets server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Dataset == "" {
				opts.Dataset = a.cfg.GetString(cfgKeyHFDataset)
			}
			if opts.Dir == "" {
				opts.Dir = filepath.Join(a.layout().RawDir(), hub.DefaultHFDirName)
			}
			client := &hub.HFClient{
				Images: fetch.New(a.cfg.GetDuration(cfgKeyTimeout)),
				Logger: a.logger,
			}
			counts, err := client.Download(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return a.emit(cmd, counts, func(w io.Writer) {
				fmt.Fprintf(w, "saved %d images to %s (%d fresh, %d rotten, %d failed)\n",
					counts.Total(), opts.Dir, counts.Fresh, counts.Rotten, counts.Failed)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Dataset, "dataset", "", "dataset id (default: config hub.huggingface_dataset)")
	f.StringVar(&opts.Config, "subset", "default", "dataset config name")
	f.StringVar(&opts.Split, "split", "train", "dataset split")
	f.StringVar(&opts.Dir, "dir", "", "destination (default: real-training-data/huggingface-original)")
	f.IntVar(&opts.Limit, "limit", 0, "stop after this many rows (0 = all)")
	f.StringVar(&opts.ImageColumn, "image-column", "image", "column holding the image")
	f.StringVar(&opts.LabelColumn, "label-column", "label", "column holding the class label")
	opts.FreshLabel = f.Int("fresh-label", hub.DefaultFreshLabel, "label value meaning fresh")
	return cmd
}

func newHubKaggleCmd(a *app) *cobra.Command {
	var slug, dir, binary string
	cmd := &cobra.Command{
		Use:   "kaggle",
		Short: "Download a Kaggle dataset with the kaggle CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			if slug == "" {
				slug = a.cfg.GetString(cfgKeyKaggleDataset)
			}
			if dir == "" {
				dir = filepath.Join(a.layout().RawDir(), hub.DefaultKaggleDirName)
			}
			k := &hub.Kaggle{Binary: binary, Output: cmd.ErrOrStderr(), Logger: a.logger}
			n, err := k.Download(cmd.Context(), slug, dir)
			if err != nil {
				return err
			}
			res := map[string]any{"dataset": slug, "dir": dir, "images": n}
			return a.emit(cmd, res, func(w io.Writer) {
				fmt.Fprintf(w, "downloaded %s to %s (%d images)\n", slug, dir, n)
			})
		},
	}
	cmd.Flags().StringVar(&slug, "dataset", "", "dataset slug (default: config hub.kaggle_dataset)")
	cmd.Flags().StringVar(&dir, "dir", "", "destination (default: real-training-data/kaggle-original)")
	cmd.Flags().StringVar(&binary, "kaggle-bin", "kaggle", "kaggle executable")
	return cmd
}

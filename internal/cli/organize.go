package cli

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/freshset/internal/imageproc"
	"github.com/mesh-intelligence/freshset/internal/organize"
	"github.com/mesh-intelligence/freshset/pkg/types"
)

func newOrganizeCmd(a *app) *cobra.Command {
	var source, output string
	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Sort downloaded datasets into <quality>/<produce> folders",
		Long: "Organize walks every dataset folder under the source directory, identifies\n" +
			"the produce and quality of each image from its path, and saves it as JPEG\n" +
			"under <output>/<quality>/<produce>. Unrecognized images are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := a.layout()
			if source == "" {
				source = layout.RawDir()
			}
			if output == "" {
				output = layout.OrganizedDir()
			}

			backend, err := a.attachCatalog()
			if err != nil {
				return err
			}
			defer backend.Detach()

			o := &organize.Organizer{
				Source:  source,
				Output:  output,
				Quality: imageproc.DefaultQuality,
				Index:   backend,
				Logger:  a.logger,
			}
			res, err := o.Run(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd, res.Metadata, func(w io.Writer) {
				fmt.Fprintf(w, "organized %d images from %d datasets (%d skipped, %d failed)\n",
					res.Total(), len(res.Datasets), res.Skipped, res.Failed)
				printStats(w, res.Stats)
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "directory holding downloaded datasets (default: real-training-data)")
	cmd.Flags().StringVar(&output, "output", "", "organized tree (default: real-training-data/organized)")
	return cmd
}

func newUnifyCmd(a *app) *cobra.Command {
	var (
		source, output string
		produce        []string
	)
	cmd := &cobra.Command{
		Use:   "unify",
		Short: "Copy a fixed produce set from the organized tree into a unified tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := a.layout()
			if source == "" {
				source = layout.OrganizedDir()
			}
			if output == "" {
				output = layout.UnifiedDir()
			}
			summary, err := organize.Unify(source, output, produce, time.Now())
			if err != nil {
				return err
			}
			return a.emit(cmd, summary, func(w io.Writer) {
				fmt.Fprintf(w, "unified %d images into %s\n", summary.TotalImages, output)
				printStats(w, summary.Structure)
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "organized tree (default: real-training-data/organized)")
	cmd.Flags().StringVar(&output, "output", "", "unified tree (default: real-training-data/unified)")
	cmd.Flags().StringSliceVar(&produce, "produce", organize.DefaultUnifiedProduce, "produce to copy")
	return cmd
}

// printStats renders per-state per-produce counts.
func printStats(w io.Writer, stats map[string]map[string]int) {
	var rows [][]any
	for _, state := range types.States {
		names := make([]string, 0, len(stats[state]))
		for p := range stats[state] {
			names = append(names, p)
		}
		sort.Strings(names)
		for _, p := range names {
			rows = append(rows, []any{state, p, stats[state][p]})
		}
	}
	if len(rows) > 0 {
		table(w, "STATE\tPRODUCE\tIMAGES", rows)
	}
}

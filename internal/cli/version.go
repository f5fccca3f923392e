package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the freshset release.
const Version = "0.1.0"

const modulePath = "github.com/mesh-intelligence/freshset"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the freshset version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "freshset v%s\nmodule: %s\n", Version, modulePath)
			return nil
		},
	}
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/infohub-go/internal/version"
)

// NewVersionCmd constructs the `infohub version` subcommand. It prints the
// version, git commit, and build date injected via -ldflags.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the infohub version, git commit, and build date",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "infohub %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.BuildDate)
		},
	}
}

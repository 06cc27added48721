package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build-time variables (set with -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	Date      = "unknown"
	GoVersion = runtime.Version()
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sdg %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:   %s\n", Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:    %s\n", Date)
			fmt.Fprintf(cmd.OutOrStdout(), "  go:       %s\n", GoVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "  platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

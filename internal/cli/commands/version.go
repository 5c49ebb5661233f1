package commands

import (
	"fmt"
	"runtime"

	"github.com/leapstack-labs/apstab/pkg/sink"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the apstab version, the Go runtime and the output types compiled into the binary.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "apstab v%s\n", version)
			_, _ = fmt.Fprintf(w, "APS patent text to table converter (%s, %s/%s)\n",
				runtime.Version(), runtime.GOOS, runtime.GOARCH)
			_, _ = fmt.Fprintf(w, "output types: %s\n", joinNames(sink.List()))
		},
	}
}

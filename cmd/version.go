package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mcpdebug/internal/debugserver"
)

func newVersionCmd() *cobra.Command {
	var noColor bool

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show the server identity sent in every reply",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			bold := color.New(color.Bold)
			gray := color.New(color.FgHiBlack)
			if noColor {
				bold.DisableColor()
				gray.DisableColor()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", bold.Sprint(debugserver.ServerName), debugserver.ServerVersion)
			fmt.Fprintf(out, "%s %s\n", gray.Sprint("protocol"), debugserver.ProtocolVersion)
		},
	}
	versionCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	return versionCmd
}

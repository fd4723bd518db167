package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mcpdebug/internal/config"
	"mcpdebug/internal/debugserver"
)

// errStreamFault marks errors the server has already logged to stderr.
var errStreamFault = errors.New("stream fault")

func Execute() error {
	root := newRootCmd()
	err := root.Execute()
	if err != nil && !errors.Is(err, errStreamFault) {
		root.PrintErrln("Error:", err)
	}
	return err
}

func newRootCmd() *cobra.Command {
	opts := config.Default()

	rootCmd := &cobra.Command{
		Use:   "mcpdebug",
		Short: "A stand-in MCP server that logs everything a client sends",
		Long: `mcpdebug takes the place of an MCP server on stdio. Every line received on stdin
is logged to stderr together with its parsed JSON. Requests (messages with an "id")
get a fixed initialize result on stdout; notifications get no reply.

Point a client at it to see exactly what it sends:

  $ my-mcp-client --server-command "mcpdebug --no-color" 2> capture.log`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, &opts)
		},
	}
	opts.BindFlags(rootCmd.Flags())

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	return rootCmd
}

func runServer(cmd *cobra.Command, opts *config.Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	level, err := opts.Level()
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	colors := !opts.NoColor && debugserver.IsTerminal(errOut)
	logger := debugserver.NewLogger(errOut, level, colors)

	server := debugserver.NewServer(cmd.InOrStdin(), cmd.OutOrStdout(), debugserver.Config{
		Logger:       logger,
		MaskSecrets:  opts.MaskSecrets,
		MaxLineBytes: opts.MaxLineBytes,
		Indent:       opts.Indent(),
	})

	if _, err := server.Run(cmd.Context()); err != nil {
		return fmt.Errorf("%w: %w", errStreamFault, err)
	}
	return nil
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate completion script",
		Long: `To load completions:

Bash:
  $ source <(mcpdebug completion bash)

Zsh:
  $ mcpdebug completion zsh > "${fpath[1]}/_mcpdebug"

Fish:
  $ mcpdebug completion fish | source

PowerShell:
  PS> mcpdebug completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}

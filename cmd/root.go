package cmd

import (
	"github.com/spf13/cobra"
	"go.olrik.dev/sigstack/internal/core"
)

func NewRootCommand() *cobra.Command {
	var depth int
	var signalName string
	var verbose int

	rootCmd := &cobra.Command{
		Use:   "sigstack",
		Short: "sigstack - process chain signal demonstrator",
		Long: `sigstack builds a linear chain of processes, each waiting on its sole
child, with the innermost process waiting on a signal. It exists to make
signal propagation observable across supervision contexts: a bare terminal,
a container without init, a container with init, and an init that signals
the whole process group.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize config and bind global flags to the config
			if err := core.InitializeConfig(cmd); err != nil {
				return err
			}
			core.SetupLogging(core.GetVerbosity())
			return nil
		},
	}
	rootCmd.PersistentFlags().IntVarP(
		&depth, "depth", "n", core.DefaultChainDepth,
		"number of processes in the chain",
	)
	rootCmd.PersistentFlags().StringVar(
		&signalName, "signal", "SIGINT",
		"fatal signal to catch and re-raise",
	)
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "more output, repeat for even more")

	rootCmd.AddCommand(
		NewRunCommand(),
		NewObserveCommand(),
		NewVersionCommand(),
	)

	return rootCmd
}

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.olrik.dev/sigstack/internal/chain"
	"go.olrik.dev/sigstack/internal/core"
	"go.olrik.dev/sigstack/internal/diag"
	"go.olrik.dev/sigstack/internal/relay"
)

func NewRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Build the process chain and wait",
		Long: `Build a chain of processes by repeated re-execution.

Each process spawns one child and blocks until the child terminates; the
innermost process blocks until a signal arrives. Every member catches the
configured fatal signal, defers it, and re-raises it on exit so that a
supervisor sees the same death an uninstrumented process would produce.

Chain children re-enter this command via the SIGSTACK_CHAIN_RUN and
SIGSTACK_DEPTH environment variables set by their spawner.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			// The top process reads the configured length; re-executed
			// children find their position in SIGSTACK_DEPTH, which config
			// picks up from the environment.
			depth := core.GetChainDepth()
			if err := core.ValidateChainDepth(depth); err != nil {
				slog.Error("refusing to build chain", "error", err)
				os.Exit(1)
			}

			sigName := core.GetFatalSignalName()
			sig, err := relay.ParseSignal(sigName)
			if err != nil {
				slog.Error("invalid fatal signal", "error", err)
				os.Exit(1)
			}

			// Arm the relay before any spawning so no window exists where
			// the fatal signal still has its default effect.
			d := diag.New(depth)
			r := relay.New(sig, d)
			r.Arm()

			b := chain.NewBuilder(depth, d, r)
			b.SetChildEnv(
				"SIGSTACK_SIGNAL="+sigName,
				fmt.Sprintf("SIGSTACK_VERBOSE=%d", core.GetVerbosity()),
			)

			if err := b.Run(); err != nil {
				slog.Error("chain failed", "depth", depth, "error", err)
				r.Exit(1)
			}
			r.Exit(0)
		},
	}
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.olrik.dev/sigstack/internal/proctree"
)

func NewObserveCommand() *cobra.Command {
	var rootPid int32

	observeCmd := &cobra.Command{
		Use:   "observe",
		Short: "Show a running chain from the process table",
		Long: `Walk a live chain in the OS process table and print each member's pid,
parent, process group and chain position.

Without --pid the topmost chain member is located by scanning for processes
running this binary. Reading another process's chain position requires the
same privileges as reading its environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootPid == 0 {
				exe, err := os.Executable()
				if err != nil {
					return fmt.Errorf("resolving executable path: %w", err)
				}
				rootPid, err = proctree.FindChainRoot(filepath.Base(exe))
				if err != nil {
					return err
				}
			}

			members, err := proctree.Inspect(rootPid)
			if err != nil && len(members) == 0 {
				return err
			}

			fmt.Printf("%-7s %-7s %-7s %-6s %s\n", "PID", "PPID", "PGID", "DEPTH", "STATUS")
			for _, m := range members {
				depth := "?"
				if m.Depth > 0 {
					depth = fmt.Sprintf("%d", m.Depth)
				}
				fmt.Printf("%-7d %-7d %-7d %-6s %s\n", m.Pid, m.PPid, m.Pgid, depth, m.Status)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "walk stopped early: %v\n", err)
			}
			return nil
		},
	}
	observeCmd.Flags().Int32Var(&rootPid, "pid", 0, "pid of the chain member to start from")

	return observeCmd
}

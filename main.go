package main

import (
	"fmt"
	"os"

	"go.olrik.dev/sigstack/cmd"
)

func main() {
	// If re-executed as a chain child, inject the "run" argument.
	// Children are spawned with no argv beyond the executable path;
	// the env var is what marks them as chain members.
	if os.Getenv("SIGSTACK_CHAIN_RUN") != "" {
		os.Args = []string{os.Args[0], "run"}
	}

	// If no command specified, default to run
	if len(os.Args) == 1 {
		os.Args = []string{os.Args[0], "run"}
	}

	root := cmd.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

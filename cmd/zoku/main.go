package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the zoku command tree: `new` starts a session, `attach`
// joins one.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zoku",
		Short: "A terminal multiplexer built on a single shared PTY",
		Long:  "zoku runs a program under a PTY behind a Unix socket and lets any number of clients attach to watch and drive it together.",
	}

	root.AddCommand(newNewCmd(), newAttachCmd())
	return root
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"zoku/internal/attachclient"
)

// newAttachCmd builds `zoku attach <socket-path>`: join a running session,
// relaying the local terminal until the user detaches or the session ends.
func newAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <socket-path>",
		Short: "Attach to a running session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := attachclient.Run(args[0]); err != nil {
				if errors.Is(err, attachclient.ErrNoServer) {
					return err
				}
				return fmt.Errorf("attach: %w", err)
			}
			return nil
		},
	}
}

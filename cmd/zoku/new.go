package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"zoku/internal/config"
	"zoku/internal/server"
)

// newNewCmd builds `zoku new <socket-path> <program> [args...]`: starts
// program under a PTY and serves it on socket-path until it exits.
func newNewCmd() *cobra.Command {
	var replayLines int
	var channelSize int

	cmd := &cobra.Command{
		Use:   "new <socket-path> <program> [args...]",
		Short: "Start a new session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Defaults()
			cfg.SocketPath = args[0]
			cfg.Program = args[1]
			cfg.Args = args[2:]

			if cmd.Flags().Changed("replay-lines") {
				cfg.ReplayLines = replayLines
			}
			if cmd.Flags().Changed("channel-size") {
				cfg.ChannelSize = channelSize
			}

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}))

			if err := server.New(cfg, logger).Run(); err != nil {
				return fmt.Errorf("run session: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&replayLines, "replay-lines", 0, "bounded scrollback lines kept outside the alternate screen (default REPLAY_LINES or 10000)")
	cmd.Flags().IntVar(&channelSize, "channel-size", 0, "per-client outbox capacity (default CHANNEL_SIZE or 1000)")

	return cmd
}

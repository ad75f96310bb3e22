// Package config parses zoku server tunables: every setting has a built-in
// default that an environment variable can override. ReplayLines and
// ChannelSize also have flags on the `new` command, which take precedence
// over the environment; BufferSize has no flag.
package config

import (
	"os"
	"strconv"

	"zoku/internal/hub"
	"zoku/internal/replay"
)

// Config holds the tunables for a zoku server instance.
type Config struct {
	SocketPath string
	Program    string
	Args       []string

	ReplayLines int // REPLAY_LINES
	BufferSize  int // BUFFER_SIZE
	ChannelSize int // CHANNEL_SIZE
}

// Defaults returns a Config with its built-in defaults, applying any
// environment-variable overrides. Flags (parsed by the cobra command in
// cmd/zoku) take precedence and are applied by the caller after Defaults
// returns.
func Defaults() *Config {
	cfg := &Config{
		ReplayLines: replay.DefaultLines,
		BufferSize:  hub.DefaultBufferSize,
		ChannelSize: 1000,
	}

	if v := os.Getenv("REPLAY_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReplayLines = n
		}
	}
	if v := os.Getenv("BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BufferSize = n
		}
	}
	if v := os.Getenv("CHANNEL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ChannelSize = n
		}
	}

	return cfg
}

package server

import (
	"fmt"
	"log/slog"

	"zoku/internal/config"
	"zoku/internal/hub"
	"zoku/internal/replay"
	"zoku/internal/termpty"
)

// defaultRows and defaultCols size the PTY before the first client attaches
// and sends a Resize frame.
const (
	defaultRows = 24
	defaultCols = 80
)

// Server is the composition root for `zoku new`: it starts the child under
// a PTY, builds the replay buffer and hub, binds the listener, and runs the
// hub's master loop until the child exits.
type Server struct {
	Config *config.Config
	Logger *slog.Logger
}

// New constructs a Server from cfg. logger must not be nil.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	return &Server{Config: cfg, Logger: logger}
}

// Run starts the child process, binds the socket, and blocks until the
// session ends (the child exits, or the PTY master returns EOF/error).
// Once the listener is bound, shutdown removes the socket path and kills
// the child before Run returns. If binding fails, Run kills the child and
// leaves the existing socket path untouched.
func (s *Server) Run() error {
	pty, err := termpty.Start(s.Config.Program, s.Config.Args, defaultRows, defaultCols)
	if err != nil {
		return fmt.Errorf("start child under pty: %w", err)
	}

	rb := replay.New(s.Config.ReplayLines)

	var listener *Listener
	h := hub.New(pty, rb, s.Config.SocketPath, s.Config.BufferSize, func() {
		if listener != nil {
			listener.Close()
		}
	}, s.Logger)

	listener, err = NewListener(s.Config.SocketPath, h.NewClients(), h.Inbox(), h.Quit(), s.Config.ChannelSize, s.Logger)
	if err != nil {
		pty.Close()
		return fmt.Errorf("bind listener: %w", err)
	}

	s.Logger.Info("zoku session started",
		"socket", s.Config.SocketPath,
		"program", s.Config.Program,
		"pid", pty.PID(),
	)

	go listener.Accept()

	h.Run()

	s.Logger.Info("zoku session ended", "socket", s.Config.SocketPath)
	return nil
}

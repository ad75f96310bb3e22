// Package server wires the framing codec, replay buffer, client sessions,
// hub, and PTY together into a running zoku server.
package server

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"zoku/internal/hub"
	"zoku/internal/protocol"
	"zoku/internal/session"
)

// Listener accepts connections on the bound Unix socket. For each
// connection it allocates a session, hands its outbox to the hub via the
// new-client channel, and never touches PTY state itself.
type Listener struct {
	ln          net.Listener
	path        string
	newClients  chan<- hub.NewClient
	inbox       chan<- protocol.Message
	quit        <-chan struct{}
	channelSize int
	logger      *slog.Logger

	closeOnce sync.Once
}

// NewListener binds path. Binding fails if the path already exists.
func NewListener(path string, newClients chan<- hub.NewClient, inbox chan<- protocol.Message, quit <-chan struct{}, channelSize int, logger *slog.Logger) (*Listener, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("socket path %q already in use", path)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("bind socket: %w", err)
	}

	return &Listener{
		ln:          ln,
		path:        path,
		newClients:  newClients,
		inbox:       inbox,
		quit:        quit,
		channelSize: channelSize,
		logger:      logger,
	}, nil
}

// Close stops accepting new connections. Safe to call more than once.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		l.ln.Close()
	})
}

// Accept runs the accept loop until the listener is closed. Each
// connection becomes a session whose outbox is registered with the hub
// before its reader/writer tasks start.
func (l *Listener) Accept() {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			l.logger.Info("listener stopped accepting", "error", err)
			return
		}

		sess := session.New(conn, l.inbox, l.quit, l.channelSize, l.logger)
		l.newClients <- hub.NewClient{ID: sess.ID, Outbox: sess.Outbox}
		go sess.Run()
	}
}

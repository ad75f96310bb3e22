// Package session implements zoku's per-client task pair (C3): a reader
// task that decodes framed messages into the hub's shared inbox, and a
// writer task that drains this client's outbox to the socket.
package session

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"zoku/internal/protocol"
)

// ErrClosed is returned by Outbox.Send once the outbox has been closed,
// meaning the client has detached.
var ErrClosed = errors.New("session: outbox closed")

// Outbox is the bounded ordered channel of byte chunks owned by the hub
// and consumed by one client writer task. It is never closed directly (to
// avoid send-on-closed-channel panics from the hub); instead a separate
// signal channel tells the writer to drain and stop.
type Outbox struct {
	ch     chan []byte
	closed chan struct{}
	once   sync.Once
}

// NewOutbox creates an Outbox with the given capacity (CHANNEL_SIZE).
func NewOutbox(capacity int) *Outbox {
	return &Outbox{
		ch:     make(chan []byte, capacity),
		closed: make(chan struct{}),
	}
}

// Send pushes a chunk onto the outbox. If the outbox is full it blocks:
// one slow client delays the broadcast to all clients, rather than
// dropping bytes. Once the outbox is closed, Send returns ErrClosed
// immediately instead of blocking forever.
func (o *Outbox) Send(b []byte) error {
	select {
	case o.ch <- b:
		return nil
	case <-o.closed:
		return ErrClosed
	}
}

// Close marks the outbox closed. Safe to call from either the reader (on
// socket/decode failure) or the hub (on shutdown), and safe to call more
// than once.
func (o *Outbox) Close() {
	o.once.Do(func() { close(o.closed) })
}

// Session is the transient (reader, writer) pair plus the outbox
// endpoint, created by the listener on accept and torn down when either
// peer closes the socket or a send fails.
type Session struct {
	ID     uuid.UUID
	Outbox *Outbox

	conn   net.Conn
	inbox  chan<- protocol.Message
	quit   <-chan struct{}
	logger *slog.Logger
}

// New constructs a Session for an accepted connection. inbox is the hub's
// shared many-producer channel; quit is closed when the hub begins
// shutdown, unblocking a reader that would otherwise wait to enqueue.
func New(conn net.Conn, inbox chan<- protocol.Message, quit <-chan struct{}, channelSize int, logger *slog.Logger) *Session {
	id := uuid.New()
	return &Session{
		ID:     id,
		Outbox: NewOutbox(channelSize),
		conn:   conn,
		inbox:  inbox,
		quit:   quit,
		logger: logger.With("client", id.String()[:8]),
	}
}

// Run starts the reader and writer tasks and blocks until the reader
// exits (i.e. until the client disconnects or the hub shuts down).
func (s *Session) Run() {
	go s.writeLoop()
	s.readLoop()
}

func (s *Session) readLoop() {
	defer func() {
		s.Outbox.Close()
		s.conn.Close()
	}()

	for {
		msg, err := protocol.Decode(s.conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("client disconnected")
			} else {
				s.logger.Warn("client protocol error, closing session", "error", err)
			}
			return
		}

		select {
		case s.inbox <- msg:
		case <-s.quit:
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.conn.Close()

	for {
		select {
		case b := <-s.Outbox.ch:
			if _, err := s.conn.Write(b); err != nil {
				s.logger.Info("write failed, client detaching", "error", err)
				s.Outbox.Close()
				return
			}
		case <-s.Outbox.closed:
			s.drain()
			return
		}
	}
}

// drain flushes any chunks already buffered in the outbox before the
// writer exits, so a client whose outbox the hub closes on shutdown still
// receives every byte that was queued for it. Write errors are ignored:
// when the reader has already closed the connection, the chunks are lost.
func (s *Session) drain() {
	for {
		select {
		case b := <-s.Outbox.ch:
			s.conn.Write(b)
		default:
			return
		}
	}
}

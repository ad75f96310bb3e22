// Package hub implements zoku's master loop: the single task that owns
// the PTY master, the replay buffer, and the broadcast set, and
// multiplexes new-client arrivals, PTY output, inbox messages, and child
// exit.
package hub

import (
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"zoku/internal/protocol"
	"zoku/internal/replay"
	"zoku/internal/session"
	"zoku/internal/termpty"
)

// DefaultBufferSize is the chunk size read from the PTY master per
// iteration when no override is configured.
const DefaultBufferSize = 4096

// NewClient is what the listener hands to the hub for each accepted
// connection: the session's identity and its outbox endpoint.
type NewClient struct {
	ID     uuid.UUID
	Outbox *session.Outbox
}

// Hub owns the PTY master, the replay buffer, and the broadcast set. The
// Run goroutine is the only one that writes to the PTY master, feeds the
// replay buffer, or changes the broadcast set; a helper goroutine started
// by Run only reads PTY output and hands each chunk to Run.
type Hub struct {
	pty        *termpty.PTY
	replay     *replay.Buffer
	sockPath   string
	bufferSize int
	logger     *slog.Logger

	newClientCh chan NewClient
	inbox       chan protocol.Message
	quit        chan struct{}
	quitOnce    sync.Once

	stopListener func()
}

// New constructs a Hub. stopListener is called exactly once, at the start
// of shutdown, to stop the listener from accepting further connections.
// bufferSize sets the chunk size read from the PTY master per iteration;
// a value of 0 or less uses DefaultBufferSize.
func New(pty *termpty.PTY, replayBuf *replay.Buffer, sockPath string, bufferSize int, stopListener func(), logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		pty:          pty,
		replay:       replayBuf,
		sockPath:     sockPath,
		bufferSize:   bufferSize,
		logger:       logger,
		newClientCh:  make(chan NewClient, 1024),
		inbox:        make(chan protocol.Message, 4096),
		quit:         make(chan struct{}),
		stopListener: stopListener,
	}
}

// NewClients returns the send-only channel the listener delivers accepted
// sessions on.
func (h *Hub) NewClients() chan<- NewClient { return h.newClientCh }

// Inbox returns the send-only channel client reader tasks decode Messages
// into.
func (h *Hub) Inbox() chan<- protocol.Message { return h.inbox }

// Quit is closed once shutdown begins; client reader tasks select on it
// to stop blocking on an inbox send.
func (h *Hub) Quit() <-chan struct{} { return h.quit }

// Run is the hub's master loop. It blocks until the child exits or the
// PTY master hits EOF/error, then performs orderly shutdown and returns.
func (h *Hub) Run() {
	ptyOut, ptyErr := h.startPTYReader()
	childExit := h.startChildWaiter()

	clients := make(map[uuid.UUID]*session.Outbox)
	defer h.shutdown(clients)

	for {
		// New-client arrival and PTY output take precedence over inbox
		// messages and child-exit: peek both non-blockingly before
		// falling through to a blocking select over all four sources.
		select {
		case nc := <-h.newClientCh:
			h.handleNewClient(clients, nc)
			continue
		default:
		}
		select {
		case chunk := <-ptyOut:
			h.handlePTYOutput(clients, chunk)
			continue
		default:
		}

		select {
		case nc := <-h.newClientCh:
			h.handleNewClient(clients, nc)
		case chunk := <-ptyOut:
			h.handlePTYOutput(clients, chunk)
		case msg := <-h.inbox:
			if !h.handleMessage(msg) {
				return
			}
		case err := <-ptyErr:
			h.logger.Info("pty master closed, shutting down", "error", err)
			return
		case err := <-childExit:
			h.logger.Info("child exited, shutting down", "error", err)
			return
		}
	}
}

func (h *Hub) startPTYReader() (<-chan []byte, <-chan error) {
	out := make(chan []byte)
	errc := make(chan error, 1)

	go func() {
		buf := make([]byte, h.bufferSize)
		for {
			n, err := h.pty.Master.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case out <- chunk:
				case <-h.quit:
					return
				}
			}
			if err != nil {
				errc <- err
				return
			}
		}
	}()

	return out, errc
}

func (h *Hub) startChildWaiter() <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- h.pty.Wait()
	}()
	return done
}

// handleNewClient delivers the replay snapshot to a newly-registered
// client before any live byte, then adds it to the broadcast set.
func (h *Hub) handleNewClient(clients map[uuid.UUID]*session.Outbox, nc NewClient) {
	for _, chunk := range h.replay.Snapshot() {
		if len(chunk) == 0 {
			continue
		}
		if err := nc.Outbox.Send(chunk); err != nil {
			h.logger.Info("client detached during replay snapshot", "client", nc.ID.String()[:8])
			return
		}
	}
	clients[nc.ID] = nc.Outbox
	h.logger.Info("client registered", "client", nc.ID.String()[:8], "total", len(clients))
}

func (h *Hub) handlePTYOutput(clients map[uuid.UUID]*session.Outbox, chunk []byte) {
	h.replay.Feed(chunk)
	for id, outbox := range clients {
		if err := outbox.Send(chunk); err != nil {
			delete(clients, id)
			h.logger.Info("client detached", "client", id.String()[:8], "total", len(clients))
		}
	}
}

// handleMessage applies one client-originated Message. It returns false
// if the PTY write failed, which is fatal and triggers shutdown.
func (h *Hub) handleMessage(msg protocol.Message) bool {
	switch msg.Kind {
	case protocol.KindData:
		if _, err := h.pty.Master.Write(msg.Data); err != nil {
			h.logger.Error("pty write failed, shutting down", "error", err)
			return false
		}
	case protocol.KindResize:
		if err := h.pty.Resize(msg.Rows, msg.Cols); err != nil {
			h.logger.Error("pty resize failed", "error", err, "rows", msg.Rows, "cols", msg.Cols)
		}
	}
	return true
}

func (h *Hub) shutdown(clients map[uuid.UUID]*session.Outbox) {
	h.quitOnce.Do(func() {
		close(h.quit)
	})

	if h.stopListener != nil {
		h.stopListener()
	}
	for _, outbox := range clients {
		outbox.Close()
	}
	if h.sockPath != "" {
		os.Remove(h.sockPath)
	}
	h.pty.Close()
	h.logger.Info("shutdown complete")
}

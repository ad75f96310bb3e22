// Package attachclient implements the `zoku attach` side: connect to a
// running session's socket, put the local terminal into raw mode, relay
// stdin as Data/Resize frames, and copy server bytes straight to stdout.
package attachclient

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/term"

	"zoku/internal/protocol"
)

// detachKey is Ctrl-\, the local keystroke that ends the attach session
// without touching the remote child.
const detachKey = 0x1c

// ErrNoServer is returned by Run when no session is listening on the
// given socket path.
var ErrNoServer = errors.New("cannot find server")

// Run connects to socketPath, attaches the local terminal, and blocks until
// the connection closes, the remote session ends, or the user presses the
// detach key.
func Run(socketPath string) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return ErrNoServer
	}
	defer conn.Close()

	fd := int(os.Stdin.Fd())

	if cols, rows, err := term.GetSize(fd); err == nil {
		_ = protocol.Encode(conn, protocol.ResizeMessage(uint16(rows), uint16(cols)))
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(done) }) }

	go relayResizes(conn, fd, sigCh, done)
	go func() {
		defer finish()
		relayStdin(conn)
	}()
	go func() {
		defer finish()
		relayOutput(conn)
	}()

	<-done
	return nil
}

func relayResizes(conn net.Conn, fd int, sigCh <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case <-sigCh:
			cols, rows, err := term.GetSize(fd)
			if err != nil {
				continue
			}
			if err := protocol.Encode(conn, protocol.ResizeMessage(uint16(rows), uint16(cols))); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// relayStdin copies local keystrokes to the connection as Data frames,
// stopping at the detach key without signaling the remote end.
func relayStdin(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			for _, b := range buf[:n] {
				if b == detachKey {
					return
				}
			}
			if encErr := protocol.Encode(conn, protocol.DataMessage(buf[:n])); encErr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// relayOutput copies raw server bytes straight to stdout; the server side
// of the protocol is unframed.
func relayOutput(conn net.Conn) {
	_, err := io.Copy(os.Stdout, conn)
	if err != nil && !errors.Is(err, io.EOF) {
		return
	}
}

// Package termpty forks a PTY and execs a program under it.
package termpty

import (
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// PTY owns one child process running under a pseudo-terminal. The hub is
// the sole reader/writer of Master once Start returns; PTY itself only
// exposes lifecycle and resize operations.
type PTY struct {
	cmd    *exec.Cmd
	Master *os.File

	mu     sync.Mutex
	closed bool
}

// Start forks a PTY, execs program with args under TERM=xterm and no other
// inherited environment, and sizes the PTY to rows×cols.
func Start(program string, args []string, rows, cols uint16) (*PTY, error) {
	cmd := exec.Command(program, args...)
	cmd.Env = []string{"TERM=xterm"}

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		return nil, err
	}

	return &PTY{cmd: cmd, Master: master}, nil
}

// Resize applies the window-size syscall to the PTY master directly via
// ioctl.
func (p *PTY) Resize(rows, cols uint16) error {
	ws := &unix.Winsize{Row: rows, Col: cols}
	return unix.IoctlSetWinsize(int(p.Master.Fd()), unix.TIOCSWINSZ, ws)
}

// Wait blocks until the child process exits and returns its exit error, if
// any. This is the child-exit signal the hub's select loop observes.
func (p *PTY) Wait() error {
	return p.cmd.Wait()
}

// Close terminates the child and releases the PTY master. Safe to call
// more than once.
func (p *PTY) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	if p.cmd.Process != nil {
		_ = p.cmd.Process.Signal(syscall.SIGTERM)
	}
	return p.Master.Close()
}

// PID returns the child's process ID, or 0 if it has not started.
func (p *PTY) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

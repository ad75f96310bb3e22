// Package replay implements zoku's bounded, screen-aware replay buffer.
//
// A freshly-attached client needs to render a screen close to what the
// live terminal shows without observing the entire child history. The
// buffer approximates this with a line-granular scrollback of the normal
// screen plus, when the child is in alternate-screen mode, a byte-level
// snapshot of the current alternate screen.
package replay

import (
	"bytes"
	"sync"
)

// DefaultLines is REPLAY_LINES: the default bound on normal-mode scrollback.
const DefaultLines = 10000

// Enter and leave are the fixed escape sequences that drive the
// Normal/Alternate state machine. Detected by suffix match on the most
// recently written accumulator, never by scanning full history.
var (
	enterAlternate = []byte{0x1B, 0x5B, 0x3F, 0x31, 0x30, 0x34, 0x39, 0x68}
	leaveAlternate = []byte{0x1B, 0x5B, 0x3F, 0x31, 0x30, 0x34, 0x39, 0x6C}
)

type mode int

const (
	modeNormal mode = iota
	modeAlternate
)

// Buffer tracks the bytes a newly-attached client needs to catch up to
// the live screen. Every method holds an internal mutex, so Feed and
// Snapshot may be called from different goroutines; in the reference
// design the hub is the sole mutator.
type Buffer struct {
	mu       sync.Mutex
	maxLines int
	lines    [][]byte // deque of line fragments; at most one lacks a trailing LF
	mode     mode
	alt      []byte
}

// New creates a Buffer bounded to maxLines of normal-mode scrollback. A
// maxLines of 0 or less uses DefaultLines.
func New(maxLines int) *Buffer {
	if maxLines <= 0 {
		maxLines = DefaultLines
	}
	return &Buffer{maxLines: maxLines}
}

// Feed mutates the buffer in place with one chunk of PTY output, applying
// the byte-by-byte Normal/Alternate state machine.
func (b *Buffer) Feed(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range chunk {
		switch b.mode {
		case modeNormal:
			b.feedNormalByte(c)
		case modeAlternate:
			b.feedAlternateByte(c)
		}
	}
}

func (b *Buffer) feedNormalByte(c byte) {
	if len(b.lines) == 0 {
		b.lines = append(b.lines, []byte{})
	}
	last := b.lines[len(b.lines)-1]
	if len(last) > 0 && last[len(last)-1] == '\n' {
		b.lines = append(b.lines, []byte{})
		last = b.lines[len(b.lines)-1]
	}
	last = append(last, c)
	b.lines[len(b.lines)-1] = last

	if len(b.lines) > b.maxLines {
		b.lines = b.lines[len(b.lines)-b.maxLines:]
	}

	if bytes.HasSuffix(last, enterAlternate) {
		b.lines[len(b.lines)-1] = last[:len(last)-len(enterAlternate)]
		b.mode = modeAlternate
		b.alt = nil
	}
}

func (b *Buffer) feedAlternateByte(c byte) {
	b.alt = append(b.alt, c)

	if bytes.HasSuffix(b.alt, leaveAlternate) {
		b.alt = nil
		b.mode = modeNormal
		return
	}
	if bytes.HasSuffix(b.alt, enterAlternate) {
		// Nested enter: the single-level model collapses it, staying
		// in alternate mode with the marker stripped.
		b.alt = b.alt[:len(b.alt)-len(enterAlternate)]
	}
}

// Snapshot returns the byte slices a newly-attached client should receive,
// in order, to bring its screen up to the buffer's current state. The
// buffer retains ownership of its storage; returned slices are copies.
func (b *Buffer) Snapshot() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([][]byte, 0, len(b.lines)+2)
	for _, line := range b.lines {
		cp := make([]byte, len(line))
		copy(cp, line)
		out = append(out, cp)
	}

	if b.mode == modeAlternate {
		marker := make([]byte, len(enterAlternate))
		copy(marker, enterAlternate)
		out = append(out, marker)

		alt := make([]byte, len(b.alt))
		copy(alt, b.alt)
		out = append(out, alt)
	}

	return out
}

// LineCount returns the current number of normal-mode scrollback lines.
func (b *Buffer) LineCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}

// InAlternate reports whether the buffer currently believes the child is
// in alternate-screen mode.
func (b *Buffer) InAlternate() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode == modeAlternate
}

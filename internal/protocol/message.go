// Package protocol implements the client→server wire framing for zoku.
//
// Every frame begins with a signed 16-bit big-endian length. A positive
// length introduces a Data frame of that many payload bytes. The sentinel
// length -4 introduces a Resize frame: two big-endian uint16 values, rows
// then cols. Any other negative length is a protocol error. Server→client
// traffic is unframed: raw PTY bytes, delivered verbatim.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const resizeSentinel = -4

// ErrProtocol is returned when a frame's length prefix is a negative value
// other than the resize sentinel, or when a short read occurs mid-frame.
var ErrProtocol = errors.New("protocol: malformed frame")

// Kind distinguishes the two Message variants.
type Kind int

const (
	KindData Kind = iota
	KindResize
)

// Message is the tagged variant carried on the client→server inbox: either
// raw keystroke data bound for the PTY, or a window-size change request.
type Message struct {
	Kind Kind
	Data []byte // valid when Kind == KindData
	Rows uint16 // valid when Kind == KindResize
	Cols uint16 // valid when Kind == KindResize
}

// DataMessage wraps a keystroke payload.
func DataMessage(b []byte) Message {
	return Message{Kind: KindData, Data: b}
}

// ResizeMessage wraps a window-size change request.
func ResizeMessage(rows, cols uint16) Message {
	return Message{Kind: KindResize, Rows: rows, Cols: cols}
}

// Encode writes the wire representation of msg to w.
func Encode(w io.Writer, msg Message) error {
	switch msg.Kind {
	case KindData:
		if len(msg.Data) > 1<<15-1 {
			return fmt.Errorf("protocol: data frame too large: %d bytes", len(msg.Data))
		}
		var header [2]byte
		binary.BigEndian.PutUint16(header[:], uint16(len(msg.Data)))
		if _, err := w.Write(header[:]); err != nil {
			return err
		}
		if len(msg.Data) == 0 {
			return nil
		}
		_, err := w.Write(msg.Data)
		return err
	case KindResize:
		var buf [6]byte
		sentinel := int16(resizeSentinel)
		binary.BigEndian.PutUint16(buf[0:2], uint16(sentinel))
		binary.BigEndian.PutUint16(buf[2:4], msg.Rows)
		binary.BigEndian.PutUint16(buf[4:6], msg.Cols)
		_, err := w.Write(buf[:])
		return err
	default:
		return fmt.Errorf("protocol: unknown message kind %d", msg.Kind)
	}
}

// Decode reads one framed Message from r. A clean end-of-stream at a frame
// boundary returns io.EOF; a short read mid-frame or an unrecognized
// negative length returns ErrProtocol.
func Decode(r io.Reader) (Message, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Message{}, io.EOF
		}
		return Message{}, ErrProtocol
	}

	length := int16(binary.BigEndian.Uint16(header[:]))

	if length > 0 {
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return Message{}, ErrProtocol
		}
		return DataMessage(data), nil
	}

	if length == resizeSentinel {
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return Message{}, ErrProtocol
		}
		rows := binary.BigEndian.Uint16(buf[0:2])
		cols := binary.BigEndian.Uint16(buf[2:4])
		return ResizeMessage(rows, cols), nil
	}

	if length == 0 {
		return DataMessage(nil), nil
	}

	return Message{}, ErrProtocol
}

package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestDataRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := []byte("hello, world\n")
	if err := Encode(&buf, DataMessage(want)); err != nil {
		t.Fatalf("encode: %v", err)
	}

	msg, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Kind != KindData {
		t.Fatalf("expected KindData, got %v", msg.Kind)
	}
	if !bytes.Equal(msg.Data, want) {
		t.Fatalf("expected %q, got %q", want, msg.Data)
	}
}

func TestResizeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, ResizeMessage(30, 100)); err != nil {
		t.Fatalf("encode: %v", err)
	}

	msg, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Kind != KindResize {
		t.Fatalf("expected KindResize, got %v", msg.Kind)
	}
	if msg.Rows != 30 || msg.Cols != 100 {
		t.Fatalf("expected (30,100), got (%d,%d)", msg.Rows, msg.Cols)
	}
}

func TestDecodeCleanEOF(t *testing.T) {
	_, err := Decode(bytes.NewReader(nil))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF at frame boundary, got %v", err)
	}
}

func TestDecodeShortReadMidFrame(t *testing.T) {
	var buf bytes.Buffer
	var header [2]byte
	header[0], header[1] = 0, 10 // length 10, but no payload follows
	buf.Write(header[:])

	_, err := Decode(&buf)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}

func TestDecodeReservedNegativeLength(t *testing.T) {
	var buf bytes.Buffer
	var header [2]byte
	// -1 encoded as big-endian int16
	header[0], header[1] = 0xFF, 0xFF
	buf.Write(header[:])

	_, err := Decode(&buf)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("expected ErrProtocol for reserved negative length, got %v", err)
	}
}

func TestEncodeMultipleFramesSequentially(t *testing.T) {
	var buf bytes.Buffer
	Encode(&buf, DataMessage([]byte("abc")))
	Encode(&buf, ResizeMessage(24, 80))
	Encode(&buf, DataMessage([]byte("def")))

	for _, want := range []Message{
		DataMessage([]byte("abc")),
		ResizeMessage(24, 80),
		DataMessage([]byte("def")),
	} {
		got, err := Decode(&buf)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Kind != want.Kind {
			t.Fatalf("expected kind %v, got %v", want.Kind, got.Kind)
		}
	}
}

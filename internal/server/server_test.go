package server

import (
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"zoku/internal/config"
	"zoku/internal/protocol"
)

// testConfig builds a Config for a server running program with args as its
// child, writing its socket into t.TempDir().
func testConfig(t *testing.T, program string, args ...string) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.SocketPath = filepath.Join(t.TempDir(), "zoku.sock")
	cfg.Program = program
	cfg.Args = args
	cfg.ReplayLines = 100
	cfg.ChannelSize = 64
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startTestServer runs a Server in the background and waits for its socket
// to accept connections.
func startTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv := New(cfg, quietLogger())

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("unix", cfg.SocketPath)
		if err == nil {
			conn.Close()
			return srv
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server never bound %s", cfg.SocketPath)
	return nil
}

func dial(t *testing.T, cfg *config.Config) net.Conn {
	t.Helper()
	conn, err := net.Dial("unix", cfg.SocketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readUntil(t *testing.T, conn net.Conn, substr string, timeout time.Duration) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 4096)
	var got []byte
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			got = append(got, buf[:n]...)
			if strings.Contains(string(got), substr) {
				return string(got)
			}
		}
		if err != nil {
			t.Fatalf("readUntil %q: got %q, err %v", substr, got, err)
		}
	}
}

// TestBroadcastFidelity checks that bytes written by one client reach every
// attached client, in order (P1).
func TestBroadcastFidelity(t *testing.T) {
	cfg := testConfig(t, "cat")
	startTestServer(t, cfg)

	a := dial(t, cfg)
	defer a.Close()
	b := dial(t, cfg)
	defer b.Close()

	if err := protocol.Encode(a, protocol.DataMessage([]byte("hello-broadcast\n"))); err != nil {
		t.Fatalf("encode: %v", err)
	}

	readUntil(t, a, "hello-broadcast", 2*time.Second)
	readUntil(t, b, "hello-broadcast", 2*time.Second)
}

// TestSnapshotThenLive checks that a client attaching after some output has
// already been produced receives the buffered bytes before anything new
// (P2).
func TestSnapshotThenLive(t *testing.T) {
	cfg := testConfig(t, "cat")
	startTestServer(t, cfg)

	first := dial(t, cfg)
	defer first.Close()
	if err := protocol.Encode(first, protocol.DataMessage([]byte("seen-before-attach\n"))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	readUntil(t, first, "seen-before-attach", 2*time.Second)

	late := dial(t, cfg)
	defer late.Close()
	readUntil(t, late, "seen-before-attach", 2*time.Second)

	if err := protocol.Encode(late, protocol.DataMessage([]byte("live-after-attach\n"))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	readUntil(t, late, "live-after-attach", 2*time.Second)
}

// TestCleanShutdownRemovesSocket checks that when the child exits, Run
// returns without error and the socket no longer accepts connections (P6).
// No client is attached while the child exits.
func TestCleanShutdownRemovesSocket(t *testing.T) {
	cfg := testConfig(t, "sh", "-c", "echo bye; exit 0")
	srv := New(cfg, quietLogger())

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dialErr(cfg.SocketPath); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down after child exit")
	}

	if _, err := dialErr(cfg.SocketPath); err == nil {
		t.Fatalf("socket %s still accepting connections after shutdown", cfg.SocketPath)
	}
}

func dialErr(path string) (net.Conn, error) {
	return net.DialTimeout("unix", path, 200*time.Millisecond)
}

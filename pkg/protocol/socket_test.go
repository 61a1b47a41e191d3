// ABOUTME: Tests for the unix socket transports
// ABOUTME: Exercises audio message exchange and descriptor passing over socket pairs
package protocol

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func newAudioPair(t *testing.T) (*AudioSocket, *AudioSocket) {
	t.Helper()

	a, b, err := NewSocketPair()
	if err != nil {
		t.Fatalf("socket pair: %v", err)
	}
	client, server := NewAudioSocket(a), NewAudioSocket(b)
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestAudioSocketExchange(t *testing.T) {
	client, server := newAudioPair(t)

	if err := server.RequestData(480); err != nil {
		t.Fatalf("request data: %v", err)
	}

	msg, err := client.ReadAudioMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.ID != AudioMessageRequestData || msg.Frames != 480 || !msg.Success() {
		t.Errorf("unexpected message %+v", msg)
	}

	if err := client.DataReady(240); err != nil {
		t.Fatalf("data ready: %v", err)
	}
	if err := client.CaptureReady(120); err != nil {
		t.Fatalf("capture ready: %v", err)
	}

	first, err := server.ReadAudioMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if first.ID != AudioMessageDataReady || first.Frames != 240 {
		t.Errorf("unexpected message %+v", first)
	}

	second, err := server.ReadAudioMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if second.ID != AudioMessageDataCaptured || second.Frames != 120 {
		t.Errorf("unexpected message %+v", second)
	}
}

func TestAudioSocketReadAfterPeerClose(t *testing.T) {
	client, server := newAudioPair(t)
	server.Close()

	if _, err := client.ReadAudioMessage(); err == nil {
		t.Error("expected error reading from closed peer")
	}
}

func TestAudioSocketRejectsMisframedRecords(t *testing.T) {
	tests := []struct {
		name   string
		record []byte
	}{
		{"short record", make([]byte, 8)},
		{"long record", make([]byte, 16)},
		{"one byte over", make([]byte, AudioMessageSize+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := newAudioPair(t)

			if _, err := server.conn.Write(tt.record); err != nil {
				t.Fatalf("write record: %v", err)
			}
			if err := server.RequestData(480); err != nil {
				t.Fatalf("request data: %v", err)
			}
			if err := server.RequestData(240); err != nil {
				t.Fatalf("request data: %v", err)
			}

			if _, err := client.ReadAudioMessage(); !errors.Is(err, ErrUnexpectedMessage) {
				t.Fatalf("expected ErrUnexpectedMessage, got %v", err)
			}

			// the records after the bad one arrive intact
			for _, frames := range []uint32{480, 240} {
				msg, err := client.ReadAudioMessage()
				if err != nil {
					t.Fatalf("read: %v", err)
				}
				if msg.ID != AudioMessageRequestData || msg.Frames != frames {
					t.Errorf("expected REQUEST_DATA for %d frames, got %+v", frames, msg)
				}
			}
		})
	}
}

func TestServerSocketPassesDescriptors(t *testing.T) {
	a, b, err := NewSocketPair()
	if err != nil {
		t.Fatalf("socket pair: %v", err)
	}
	client, server := NewServerSocket(a), NewServerSocket(b)
	defer client.Close()
	defer server.Close()

	f, err := os.CreateTemp(t.TempDir(), "fd")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	defer f.Close()

	if err := client.SendServerMessageWithFds(DisconnectStreamMessage{StreamID: 3}, []int{int(f.Fd())}); err != nil {
		t.Fatalf("send: %v", err)
	}

	data, fds, err := server.ReadServerMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	defer func() {
		for _, fd := range fds {
			unix.Close(fd)
		}
	}()

	msg, err := DecodeDisconnectStreamMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.StreamID != 3 {
		t.Errorf("expected stream id 3, got %d", msg.StreamID)
	}
	if len(fds) != 1 {
		t.Fatalf("expected 1 descriptor, got %d", len(fds))
	}
}

func TestServerSocketWithoutDescriptors(t *testing.T) {
	a, b, err := NewSocketPair()
	if err != nil {
		t.Fatalf("socket pair: %v", err)
	}
	client, server := NewServerSocket(a), NewServerSocket(b)
	defer client.Close()
	defer server.Close()

	if err := client.SendServerMessageWithFds(DisconnectStreamMessage{StreamID: 11}, nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	data, fds, err := server.ReadServerMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(fds) != 0 {
		t.Errorf("expected no descriptors, got %d", len(fds))
	}
	if len(data) != DisconnectStreamMessageSize {
		t.Errorf("expected %d bytes, got %d", DisconnectStreamMessageSize, len(data))
	}
}

func TestDialServer(t *testing.T) {
	dir := t.TempDir()
	path := SocketPath(dir)
	if filepath.Base(path) != SocketFile {
		t.Fatalf("unexpected socket path %s", path)
	}

	if _, err := DialServer(path); err == nil {
		t.Error("expected dial to fail without a listener")
	}
}

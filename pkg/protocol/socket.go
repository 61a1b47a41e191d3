// ABOUTME: Unix socket transports for the CRAS control channel
// ABOUTME: Per-stream audio sockets and the administrative server socket with fd passing
package protocol

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	// SocketFile is the name of the server's administrative socket
	SocketFile = ".cras_socket"

	// maxServerMessageSize bounds a single administrative message
	maxServerMessageSize = 4096

	// maxPassedFds bounds the descriptors accepted with one message
	maxPassedFds = 8
)

// SocketPath returns the administrative socket path inside dir
func SocketPath(dir string) string {
	return filepath.Join(dir, SocketFile)
}

// AudioSocket carries audio messages for a single stream. The connection
// must preserve record boundaries (SOCK_SEQPACKET): each read is one message.
type AudioSocket struct {
	conn *net.UnixConn
	mu   sync.Mutex
	// one spare byte detects over-long records
	buf [AudioMessageSize + 1]byte
}

// NewAudioSocket wraps an already connected socket
func NewAudioSocket(conn *net.UnixConn) *AudioSocket {
	return &AudioSocket{conn: conn}
}

// ReadAudioMessage blocks until one audio record has been read. A record of
// the wrong size is consumed and reported as ErrUnexpectedMessage.
func (s *AudioSocket) ReadAudioMessage() (AudioMessage, error) {
	n, err := s.conn.Read(s.buf[:])
	if err != nil {
		return AudioMessage{}, fmt.Errorf("read audio message: %w", err)
	}
	if n != AudioMessageSize {
		return AudioMessage{}, fmt.Errorf("%w: audio record of %d bytes, want %d", ErrUnexpectedMessage, n, AudioMessageSize)
	}
	return DecodeAudioMessage(s.buf[:n])
}

// SendAudioMessage writes one audio message
func (s *AudioSocket) SendAudioMessage(msg AudioMessage) error {
	data, _ := msg.MarshalBinary()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("send %s: %w", msg.ID, err)
	}
	return nil
}

// DataReady tells the peer that frames of playback (or captured) audio are ready
func (s *AudioSocket) DataReady(frames uint32) error {
	return s.SendAudioMessage(AudioMessage{ID: AudioMessageDataReady, Frames: frames})
}

// CaptureReady tells the server that frames of captured audio were consumed
func (s *AudioSocket) CaptureReady(frames uint32) error {
	return s.SendAudioMessage(AudioMessage{ID: AudioMessageDataCaptured, Frames: frames})
}

// RequestData asks the client for frames of playback audio
func (s *AudioSocket) RequestData(frames uint32) error {
	return s.SendAudioMessage(AudioMessage{ID: AudioMessageRequestData, Frames: frames})
}

// Close closes the underlying connection. Any blocked read returns an error.
func (s *AudioSocket) Close() error {
	return s.conn.Close()
}

// ServerSocket is a connection to the server's administrative socket
type ServerSocket struct {
	conn *net.UnixConn
	mu   sync.Mutex
}

// NewServerSocket wraps an already connected socket
func NewServerSocket(conn *net.UnixConn) *ServerSocket {
	return &ServerSocket{conn: conn}
}

// DialServer connects to the administrative socket at path
func DialServer(path string) (*ServerSocket, error) {
	conn, err := net.DialUnix("unixpacket", nil, &net.UnixAddr{Name: path, Net: "unixpacket"})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return NewServerSocket(conn), nil
}

// SendServerMessageWithFds writes msg, passing fds alongside it as SCM_RIGHTS
func (s *ServerSocket) SendServerMessageWithFds(msg ServerMessage, fds []int) error {
	data, err := msg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.ID(), err)
	}

	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, err := s.conn.WriteMsgUnix(data, oob, nil); err != nil {
		return fmt.Errorf("send %s: %w", msg.ID(), err)
	}
	return nil
}

// ReadServerMessage reads one raw administrative message and any descriptors
// passed with it. The caller owns the returned descriptors.
func (s *ServerSocket) ReadServerMessage() ([]byte, []int, error) {
	buf := make([]byte, maxServerMessageSize)
	oob := make([]byte, unix.CmsgSpace(maxPassedFds*4))

	n, oobn, _, _, err := s.conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return nil, nil, fmt.Errorf("read server message: %w", err)
	}

	fds, err := parseRights(oob[:oobn])
	if err != nil {
		return nil, nil, err
	}
	return buf[:n], fds, nil
}

// Close closes the underlying connection
func (s *ServerSocket) Close() error {
	return s.conn.Close()
}

func parseRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}

	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("parse control message: %w", err)
	}

	var fds []int
	for i := range msgs {
		rights, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		fds = append(fds, rights...)
	}
	return fds, nil
}

// NewSocketPair returns two connected SOCK_SEQPACKET unix sockets
func NewSocketPair() (*net.UnixConn, *net.UnixConn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}

	a, err := fileConn(fds[0], "cras-pair-0")
	if err != nil {
		unix.Close(fds[1])
		return nil, nil, err
	}
	b, err := fileConn(fds[1], "cras-pair-1")
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, b, nil
}

func fileConn(fd int, name string) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()

	conn, err := net.FileConn(f)
	if err != nil {
		return nil, fmt.Errorf("wrap %s: %w", name, err)
	}

	uc, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("wrap %s: not a unix socket", name)
	}
	return uc, nil
}

// ABOUTME: CRAS control message definitions
// ABOUTME: Defines the per-stream audio messages and the administrative server messages
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// AudioMessageID tags messages exchanged on a stream's audio socket
type AudioMessageID uint32

const (
	// AudioMessageRequestData is sent by the server when it wants playback samples
	AudioMessageRequestData AudioMessageID = iota
	// AudioMessageDataReady is sent by the client after committing playback
	// frames, and by the server when captured frames are available
	AudioMessageDataReady
	// AudioMessageDataCaptured is sent by the client after consuming captured frames
	AudioMessageDataCaptured
)

func (id AudioMessageID) String() string {
	switch id {
	case AudioMessageRequestData:
		return "AUDIO_MESSAGE_REQUEST_DATA"
	case AudioMessageDataReady:
		return "AUDIO_MESSAGE_DATA_READY"
	case AudioMessageDataCaptured:
		return "AUDIO_MESSAGE_DATA_CAPTURED"
	default:
		return fmt.Sprintf("AUDIO_MESSAGE(%d)", uint32(id))
	}
}

// ServerMessageID tags messages sent to the server's administrative socket
type ServerMessageID uint32

const (
	ServerMessageConnectStream ServerMessageID = iota
	ServerMessageDisconnectStream
)

func (id ServerMessageID) String() string {
	switch id {
	case ServerMessageConnectStream:
		return "CRAS_SERVER_CONNECT_STREAM"
	case ServerMessageDisconnectStream:
		return "CRAS_SERVER_DISCONNECT_STREAM"
	default:
		return fmt.Sprintf("CRAS_SERVER_MESSAGE(%d)", uint32(id))
	}
}

const (
	// AudioMessageSize is the packed size of an audio message: id, error, frames
	AudioMessageSize = 4 + 4 + 4

	// ServerMessageHeaderSize is the packed size of a server message header: length, id
	ServerMessageHeaderSize = 4 + 4

	// DisconnectStreamMessageSize is the header followed by the stream id
	DisconnectStreamMessageSize = ServerMessageHeaderSize + 4
)

var (
	// ErrShortMessage is returned when a buffer is too small to hold a message
	ErrShortMessage = errors.New("message too short")

	// ErrUnexpectedMessage is returned when a decoded message has the wrong id or length
	ErrUnexpectedMessage = errors.New("unexpected message")
)

// AudioMessage is one message read from or written to a stream's audio socket.
// A non-zero Error means the server reported a stream error instead of a request.
type AudioMessage struct {
	ID     AudioMessageID
	Error  int32
	Frames uint32 // samples per channel
}

// Success reports whether the message carries a request rather than an error
func (m AudioMessage) Success() bool {
	return m.Error == 0
}

// MarshalBinary encodes the message in its packed wire layout
func (m AudioMessage) MarshalBinary() ([]byte, error) {
	buf := make([]byte, AudioMessageSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(m.ID))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(m.Error))
	binary.LittleEndian.PutUint32(buf[8:12], m.Frames)
	return buf, nil
}

// DecodeAudioMessage parses a packed audio message
func DecodeAudioMessage(data []byte) (AudioMessage, error) {
	if len(data) < AudioMessageSize {
		return AudioMessage{}, fmt.Errorf("%w: audio message needs %d bytes, got %d", ErrShortMessage, AudioMessageSize, len(data))
	}

	return AudioMessage{
		ID:     AudioMessageID(binary.LittleEndian.Uint32(data[0:4])),
		Error:  int32(binary.LittleEndian.Uint32(data[4:8])),
		Frames: binary.LittleEndian.Uint32(data[8:12]),
	}, nil
}

// ServerMessage is any message that can be sent on the administrative socket
type ServerMessage interface {
	ID() ServerMessageID
	MarshalBinary() ([]byte, error)
}

// ServerMessageHeader prefixes every server message
type ServerMessageHeader struct {
	Length uint32
	ID     ServerMessageID
}

// DecodeServerMessageHeader parses the header of a server message
func DecodeServerMessageHeader(data []byte) (ServerMessageHeader, error) {
	if len(data) < ServerMessageHeaderSize {
		return ServerMessageHeader{}, fmt.Errorf("%w: server message header needs %d bytes, got %d", ErrShortMessage, ServerMessageHeaderSize, len(data))
	}

	return ServerMessageHeader{
		Length: binary.LittleEndian.Uint32(data[0:4]),
		ID:     ServerMessageID(binary.LittleEndian.Uint32(data[4:8])),
	}, nil
}

// DisconnectStreamMessage asks the server to remove a stream
type DisconnectStreamMessage struct {
	StreamID uint32
}

// ID implements ServerMessage
func (m DisconnectStreamMessage) ID() ServerMessageID {
	return ServerMessageDisconnectStream
}

// MarshalBinary implements ServerMessage
func (m DisconnectStreamMessage) MarshalBinary() ([]byte, error) {
	buf := make([]byte, DisconnectStreamMessageSize)
	binary.LittleEndian.PutUint32(buf[0:4], DisconnectStreamMessageSize)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(ServerMessageDisconnectStream))
	binary.LittleEndian.PutUint32(buf[8:12], m.StreamID)
	return buf, nil
}

// DecodeDisconnectStreamMessage parses a disconnect message, checking its header
func DecodeDisconnectStreamMessage(data []byte) (DisconnectStreamMessage, error) {
	header, err := DecodeServerMessageHeader(data)
	if err != nil {
		return DisconnectStreamMessage{}, err
	}
	if header.ID != ServerMessageDisconnectStream {
		return DisconnectStreamMessage{}, fmt.Errorf("%w: expected %s, got %s", ErrUnexpectedMessage, ServerMessageDisconnectStream, header.ID)
	}
	if header.Length != DisconnectStreamMessageSize || len(data) < DisconnectStreamMessageSize {
		return DisconnectStreamMessage{}, fmt.Errorf("%w: disconnect message length %d, buffer %d", ErrUnexpectedMessage, header.Length, len(data))
	}

	return DisconnectStreamMessage{
		StreamID: binary.LittleEndian.Uint32(data[8:12]),
	}, nil
}

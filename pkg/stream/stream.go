// ABOUTME: Client side of one CRAS audio stream
// ABOUTME: Paces shared-memory buffers with the server over the audio socket and disconnects on Close
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/Resonate-Protocol/cras-go/pkg/audio"
	"github.com/Resonate-Protocol/cras-go/pkg/metrics"
	"github.com/Resonate-Protocol/cras-go/pkg/protocol"
	"github.com/Resonate-Protocol/cras-go/pkg/shm"
)

// ServerSocket is the administrative connection to the server
type ServerSocket interface {
	SendServerMessageWithFds(msg protocol.ServerMessage, fds []int) error
	Close() error
}

// AudioSocket is the per-stream message socket shared with the server's audio thread
type AudioSocket interface {
	ReadAudioMessage() (protocol.AudioMessage, error)
	DataReady(frames uint32) error
	CaptureReady(frames uint32) error
	Close() error
}

// Option configures a Stream
type Option func(*Stream)

// WithLogger sets the logger used for failures that cannot be returned
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stream) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records stream activity in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Stream) {
		s.metrics = m
	}
}

// Stream is a CRAS client stream. It is driven by a single goroutine that
// alternates between requesting a buffer and releasing it; a buffer must be
// released before the next one is requested. Close may be called from any
// goroutine: it fails a blocked request, and a buffer still pending keeps
// its memory mapped until it is released.
type Stream struct {
	id        uint32
	server    ServerSocket
	blockSize uint32
	direction audio.Direction
	rate      int
	channels  int
	format    audio.SampleFormat

	// Interacts with the server audio thread
	controls *streamData

	logger    *slog.Logger
	metrics   *metrics.Metrics
	closeOnce sync.Once
}

// New creates a stream from sockets that are already connected. Shared
// memory is attached later with AttachSharedMemory. No I/O is performed.
func New(
	id uint32,
	server ServerSocket,
	blockSize uint32,
	direction audio.Direction,
	rate int,
	channels int,
	format audio.SampleFormat,
	audioSock AudioSocket,
	opts ...Option,
) *Stream {
	s := &Stream{
		id:        id,
		server:    server,
		blockSize: blockSize,
		direction: direction,
		rate:      rate,
		channels:  channels,
		format:    format,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.controls = &streamData{
		streamID:  id,
		audioSock: audioSock,
		logger:    s.logger,
		metrics:   s.metrics,
	}
	s.metrics.StreamOpened()

	runtime.SetFinalizer(s, func(s *Stream) {
		s.logger.Warn("stream was not closed", slog.Uint64("stream_id", uint64(s.id)))
		s.Close()
	})

	return s
}

// ID returns the server-assigned stream id
func (s *Stream) ID() uint32 {
	return s.id
}

// BlockSize returns the frames per period the stream was created with
func (s *Stream) BlockSize() uint32 {
	return s.blockSize
}

// Direction returns whether the stream plays or captures
func (s *Stream) Direction() audio.Direction {
	return s.direction
}

// Rate returns the sample rate in Hz
func (s *Stream) Rate() int {
	return s.rate
}

// Channels returns the channel count
func (s *Stream) Channels() int {
	return s.channels
}

// Format returns the sample format
func (s *Stream) Format() audio.SampleFormat {
	return s.format
}

// Ready reports whether shared memory has been attached
func (s *Stream) Ready() bool {
	return s.controls.currentRegion() != nil
}

// AttachSharedMemory maps the shared audio region received from the server.
// The stream takes ownership of f and closes it. On failure the stream
// keeps its previous state.
func (s *Stream) AttachSharedMemory(f *os.File) error {
	region, err := shm.Map(f)
	if cerr := f.Close(); cerr != nil {
		s.logger.Debug("closing shm descriptor failed",
			slog.Uint64("stream_id", uint64(s.id)),
			slog.Any("error", cerr),
		)
	}
	if err != nil {
		return ioError(fmt.Errorf("attach shared memory: %w", err))
	}

	frameBytes := audio.Format{SampleFormat: s.format, Rate: s.rate, Channels: s.channels}.FrameBytes()
	if int(region.FrameSize()) != frameBytes {
		region.Close()
		return ioError(fmt.Errorf("attach shared memory: %w: region %d bytes, stream %d bytes",
			ErrFrameSizeMismatch, region.FrameSize(), frameBytes))
	}

	if err := s.controls.attach(region); err != nil {
		region.Close()
		return ioError(fmt.Errorf("attach shared memory: %w", err))
	}

	s.logger.Debug("shared memory attached",
		slog.Uint64("stream_id", uint64(s.id)),
		slog.Uint64("frame_size", uint64(region.FrameSize())),
		slog.Uint64("capacity", uint64(region.Capacity())),
	)
	return nil
}

// NextPlaybackBuffer blocks until the server requests data, then returns the
// writable window of shared memory. Releasing the buffer commits the frames
// and tells the server they are ready.
func (s *Stream) NextPlaybackBuffer() (*audio.PlaybackBuffer, error) {
	if s.controls.currentRegion() == nil {
		return nil, s.requestFailed(ErrNoShm)
	}

	if err := s.waitAudioMessage(protocol.AudioMessageRequestData); err != nil {
		return nil, s.requestFailed(err)
	}

	region, window, err := s.controls.window(audio.DirectionPlayback)
	if err != nil {
		return nil, s.requestFailed(ioError(err))
	}
	buf, err := audio.NewPlaybackBuffer(int(region.FrameSize()), window, playbackDrop{s})
	if err != nil {
		s.controls.abandon()
		return nil, s.requestFailed(ioError(err))
	}

	s.metrics.BufferHanded(audio.DirectionPlayback.String())
	return buf, nil
}

// NextCaptureBuffer blocks until the server reports captured data, then
// returns the readable window of shared memory. Releasing the buffer consumes
// the frames and tells the server they were captured.
func (s *Stream) NextCaptureBuffer() (*audio.CaptureBuffer, error) {
	if s.controls.currentRegion() == nil {
		return nil, s.requestFailed(ErrNoShm)
	}

	if err := s.waitAudioMessage(protocol.AudioMessageDataReady); err != nil {
		return nil, s.requestFailed(err)
	}

	region, window, err := s.controls.window(audio.DirectionCapture)
	if err != nil {
		return nil, s.requestFailed(ioError(err))
	}
	buf, err := audio.NewCaptureBuffer(int(region.FrameSize()), window, captureDrop{s})
	if err != nil {
		s.controls.abandon()
		return nil, s.requestFailed(ioError(err))
	}

	s.metrics.BufferHanded(audio.DirectionCapture.String())
	return buf, nil
}

// waitAudioMessage reads exactly one message and checks it is want
func (s *Stream) waitAudioMessage(want protocol.AudioMessageID) *Error {
	msg, err := s.controls.audioSock.ReadAudioMessage()
	if errors.Is(err, protocol.ErrUnexpectedMessage) {
		return &Error{Kind: KindMessageType, Err: err}
	}
	if err != nil {
		return ioError(err)
	}

	if !msg.Success() {
		return messageTypeError("server reported stream error %d", msg.Error)
	}
	if msg.ID != want {
		return messageTypeError("expected %s, got %s", want, msg.ID)
	}
	return nil
}

func (s *Stream) requestFailed(err *Error) *Error {
	s.metrics.RequestFailed(err.Kind.String())
	return err
}

// Close sends the disconnect message to the server and releases the sockets
// and shared memory. It does not wait for the server to acknowledge the
// disconnect. A pending buffer stays writable and its release unmaps the
// region. Failures are logged; Close always returns nil and only the first
// call has any effect.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		runtime.SetFinalizer(s, nil)

		msg := protocol.DisconnectStreamMessage{StreamID: s.id}
		if err := s.server.SendServerMessageWithFds(msg, nil); err != nil {
			s.teardownFailed("disconnect", err)
		} else {
			s.metrics.DisconnectSent()
		}

		if err := s.controls.audioSock.Close(); err != nil {
			s.teardownFailed("close_audio_socket", err)
		}
		if err := s.server.Close(); err != nil {
			s.teardownFailed("close_server_socket", err)
		}
		s.controls.close()

		s.metrics.StreamClosed()
		s.logger.Debug("stream closed", slog.Uint64("stream_id", uint64(s.id)))
	})
	return nil
}

func (s *Stream) teardownFailed(op string, err error) {
	s.logger.Error("stream teardown failed",
		slog.Uint64("stream_id", uint64(s.id)),
		slog.String("op", op),
		slog.Any("error", err),
	)
	s.metrics.ReleaseFailed(op)
}

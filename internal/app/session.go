// ABOUTME: Stream session orchestration for the CLI
// ABOUTME: Connects a stream to the loopback server and moves audio between files and shared memory
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/cras-go/internal/config"
	"github.com/Resonate-Protocol/cras-go/internal/loopback"
	"github.com/Resonate-Protocol/cras-go/pkg/audio"
	"github.com/Resonate-Protocol/cras-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/cras-go/pkg/metrics"
	"github.com/Resonate-Protocol/cras-go/pkg/stream"
)

// Config holds session configuration
type Config struct {
	StreamID uint32
	Stream   config.StreamConfig

	// Input is the audio file fed into the stream. Empty plays a test tone.
	Input string
	// Output is an optional WAV file receiving the audio that crossed the stream
	Output string
	// Duration stops the session after this much audio. Zero runs until the
	// input ends.
	Duration time.Duration
	// Realtime paces the server at the stream rate
	Realtime bool
}

// Status is a snapshot of session progress
type Status struct {
	State     string
	Buffers   uint64
	Frames    uint64
	Requests  uint64
	Errors    int
	LastError string
}

// Session runs one stream from connect to disconnect
type Session struct {
	config  Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	buffers atomic.Uint64
	frames  atomic.Uint64
	peer    atomic.Pointer[loopback.Peer]

	mu        sync.Mutex
	state     string
	errors    int
	lastError string
}

// New creates a new session. A nil logger uses slog.Default; m may be nil.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		config:  cfg,
		logger:  logger.With(slog.Uint64("stream_id", uint64(cfg.StreamID))),
		metrics: m,
		state:   "idle",
	}
}

// Status returns the current progress
func (s *Session) Status() Status {
	s.mu.Lock()
	status := Status{
		State:     s.state,
		Errors:    s.errors,
		LastError: s.lastError,
	}
	s.mu.Unlock()

	status.Buffers = s.buffers.Load()
	status.Frames = s.frames.Load()
	if peer := s.peer.Load(); peer != nil {
		status.Requests = peer.Stats().Requests
	}
	return status
}

// Run connects the stream and exchanges buffers until the input ends, the
// duration elapses or ctx is cancelled. Cancellation is not an error.
func (s *Session) Run(ctx context.Context) error {
	err := s.run(ctx)
	switch {
	case err != nil:
		s.recordError(err)
		s.setState("failed")
	case ctx.Err() != nil:
		s.setState("stopped")
	default:
		s.setState("finished")
	}
	return err
}

func (s *Session) run(ctx context.Context) error {
	format, err := s.config.Stream.AudioFormat()
	if err != nil {
		return err
	}
	direction, err := s.config.Stream.StreamDirection()
	if err != nil {
		return err
	}
	blockSize := s.config.Stream.BlockSize

	source, err := decode.Open(s.config.Input)
	if err != nil {
		return err
	}
	defer source.Close()

	reader, err := newPCMReader(source, format, blockSize)
	if err != nil {
		return err
	}
	var input io.Reader = reader
	if s.config.Duration > 0 {
		frames := int64(s.config.Duration) * int64(format.Rate) / int64(time.Second)
		input = io.LimitReader(reader, frames*int64(format.FrameBytes()))
	}

	var sink io.WriteCloser = discardSink{}
	if s.config.Output != "" {
		if sink, err = newWAVSink(s.config.Output, format); err != nil {
			return err
		}
	}
	defer func() {
		if err := sink.Close(); err != nil {
			s.logger.Error("failed to finalize output", slog.Any("error", err))
		}
	}()

	peer, st, err := loopback.Connect(loopback.Config{
		StreamID:  s.config.StreamID,
		Direction: direction,
		Format:    format,
		BlockSize: uint32(blockSize),
		Periods:   uint32(s.config.Stream.Periods),
		Realtime:  s.config.Realtime,
	}, s.logger, stream.WithMetrics(s.metrics))
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	defer peer.Close()
	s.peer.Store(peer)

	s.logger.Info("stream connected",
		slog.String("direction", direction.String()),
		slog.String("format", format.String()),
		slog.Int("block_size", blockSize),
		slog.String("peer_id", peer.ID()),
	)
	s.setState("running")

	if direction == audio.DirectionCapture {
		return s.runCapture(ctx, peer, st, input, sink)
	}
	return s.runPlayback(ctx, peer, st, input, sink)
}

// runPlayback fills each requested buffer from input. The peer writes what it
// receives to sink.
func (s *Session) runPlayback(ctx context.Context, peer *loopback.Peer, st *stream.Stream, input io.Reader, sink io.Writer) error {
	served := s.serve(peer, func() error { return peer.ServePlayback(ctx, sink) })

	for {
		buf, err := st.NextPlaybackBuffer()
		if err != nil {
			st.Close()
			return s.finish(ctx, err, <-served)
		}

		n, rerr := io.ReadFull(input, buf.Bytes())
		frames := n / buf.FrameSize()
		buf.CommitFrames(frames)
		s.recordBuffer(frames)

		if rerr != nil {
			st.Close()
			serr := <-served
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				s.logger.Info("input finished", slog.Uint64("frames", s.frames.Load()))
				return ignoreCancel(serr)
			}
			return rerr
		}
	}
}

// runCapture has the peer capture from input and writes each captured buffer
// to sink. The peer hangs up when input is exhausted.
func (s *Session) runCapture(ctx context.Context, peer *loopback.Peer, st *stream.Stream, input io.Reader, sink io.Writer) error {
	served := s.serve(peer, func() error { return peer.ServeCapture(ctx, input) })

	for {
		buf, err := st.NextCaptureBuffer()
		if err != nil {
			st.Close()
			serr := <-served
			if serr == nil && ctx.Err() == nil && stream.IsIOError(err) {
				s.logger.Info("capture finished", slog.Uint64("frames", s.frames.Load()))
				return nil
			}
			return s.finish(ctx, err, serr)
		}

		if _, werr := sink.Write(buf.Bytes()); werr != nil {
			buf.CommitFrames(0)
			st.Close()
			<-served
			return fmt.Errorf("write capture: %w", werr)
		}
		buf.CommitFrames(buf.Frames())
		s.recordBuffer(buf.Frames())
	}
}

// serve runs the peer loop in the background. A failing peer is closed so
// the client's blocked request returns.
func (s *Session) serve(peer *loopback.Peer, fn func() error) <-chan error {
	served := make(chan error, 1)
	go func() {
		err := fn()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("server side failed", slog.Any("error", err))
			peer.Close()
		}
		served <- err
	}()
	return served
}

// finish decides what a failed buffer request means once the peer stopped
func (s *Session) finish(ctx context.Context, reqErr, serveErr error) error {
	if ctx.Err() != nil {
		return nil
	}
	if serveErr != nil {
		return fmt.Errorf("server: %w", serveErr)
	}
	return reqErr
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (s *Session) recordBuffer(frames int) {
	s.buffers.Add(1)
	s.frames.Add(uint64(frames))
}

func (s *Session) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
	s.lastError = err.Error()
}

func (s *Session) setState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

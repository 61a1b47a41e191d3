// ABOUTME: In-process stand-in for the audio server side of one stream
// ABOUTME: Owns the server ends of both sockets and the shared region, pacing the client like the server would
package loopback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/Resonate-Protocol/cras-go/pkg/audio"
	"github.com/Resonate-Protocol/cras-go/pkg/protocol"
	"github.com/Resonate-Protocol/cras-go/pkg/shm"
	"github.com/Resonate-Protocol/cras-go/pkg/stream"
)

// Config describes the stream the peer serves
type Config struct {
	StreamID  uint32
	Direction audio.Direction
	Format    audio.Format
	BlockSize uint32 // frames per period
	Periods   uint32 // ring capacity in periods

	// Realtime paces requests at the stream rate instead of as fast as the
	// client answers
	Realtime bool
}

func (c Config) validate() error {
	if c.Format.FrameBytes() == 0 {
		return fmt.Errorf("invalid format: %s", c.Format)
	}
	if c.BlockSize == 0 || c.Periods == 0 {
		return fmt.Errorf("invalid ring: block_size=%d periods=%d", c.BlockSize, c.Periods)
	}
	if c.Realtime && c.Format.Rate <= 0 {
		return fmt.Errorf("realtime pacing needs a rate, got %d", c.Format.Rate)
	}
	return nil
}

// Stats counts what the peer has exchanged with the client
type Stats struct {
	Requests       uint64
	FramesReceived uint64
	FramesSent     uint64
	Overruns       uint32
}

// Peer is the server side of a single stream
type Peer struct {
	id     string
	cfg    Config
	region *shm.Region
	audio  *protocol.AudioSocket
	admin  *protocol.ServerSocket
	logger *slog.Logger

	requests       atomic.Uint64
	framesReceived atomic.Uint64
	framesSent     atomic.Uint64

	mu          sync.Mutex
	disconnects []protocol.DisconnectStreamMessage

	adminDone chan struct{}
	closeOnce sync.Once
}

// Connect creates a peer and a client stream wired to it, with shared
// memory already attached
func Connect(cfg Config, logger *slog.Logger, opts ...stream.Option) (*Peer, *stream.Stream, error) {
	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientAudio, serverAudio, err := protocol.NewSocketPair()
	if err != nil {
		return nil, nil, fmt.Errorf("audio socket: %w", err)
	}
	clientAdmin, serverAdmin, err := protocol.NewSocketPair()
	if err != nil {
		clientAudio.Close()
		serverAudio.Close()
		return nil, nil, fmt.Errorf("server socket: %w", err)
	}

	region, shmFile, err := shm.Create(shm.Config{
		FrameSize: uint32(cfg.Format.FrameBytes()),
		Capacity:  cfg.BlockSize * cfg.Periods,
		Period:    cfg.BlockSize,
	})
	if err != nil {
		for _, c := range []*net.UnixConn{clientAudio, serverAudio, clientAdmin, serverAdmin} {
			c.Close()
		}
		return nil, nil, fmt.Errorf("shared memory: %w", err)
	}

	p := &Peer{
		id:        uuid.NewString(),
		cfg:       cfg,
		region:    region,
		audio:     protocol.NewAudioSocket(serverAudio),
		admin:     protocol.NewServerSocket(serverAdmin),
		adminDone: make(chan struct{}),
	}
	p.logger = logger.With(slog.String("peer_id", p.id), slog.Uint64("stream_id", uint64(cfg.StreamID)))
	go p.serveAdmin()

	opts = append([]stream.Option{stream.WithLogger(logger)}, opts...)
	s := stream.New(
		cfg.StreamID,
		protocol.NewServerSocket(clientAdmin),
		cfg.BlockSize,
		cfg.Direction,
		cfg.Format.Rate,
		cfg.Format.Channels,
		cfg.Format.SampleFormat,
		protocol.NewAudioSocket(clientAudio),
		opts...,
	)
	if err := s.AttachSharedMemory(shmFile); err != nil {
		s.Close()
		p.Close()
		return nil, nil, err
	}

	p.logger.Debug("loopback peer connected",
		slog.String("direction", cfg.Direction.String()),
		slog.String("format", cfg.Format.String()),
	)
	return p, s, nil
}

// ID returns the peer's session id
func (p *Peer) ID() string {
	return p.id
}

// Region returns the server's mapping of the shared memory
func (p *Peer) Region() *shm.Region {
	return p.region
}

// ServePlayback requests one period at a time and writes every committed
// frame to w. It returns nil once the client hangs up the audio socket.
func (p *Peer) ServePlayback(ctx context.Context, w io.Writer) error {
	stop := context.AfterFunc(ctx, func() { p.audio.Close() })
	defer stop()

	pace := p.pacer()
	defer pace.Stop()

	for {
		if err := p.audio.RequestData(p.cfg.BlockSize); err != nil {
			return p.servingEnded(ctx, err)
		}
		p.requests.Add(1)

		msg, err := p.audio.ReadAudioMessage()
		if err != nil {
			return p.servingEnded(ctx, err)
		}
		if msg.ID != protocol.AudioMessageDataReady {
			return fmt.Errorf("%w: expected %s, got %s", protocol.ErrUnexpectedMessage, protocol.AudioMessageDataReady, msg.ID)
		}

		if err := p.drain(w); err != nil {
			return err
		}
		pace.Wait()
	}
}

// drain copies readable frames to w and releases them
func (p *Peer) drain(w io.Writer) error {
	for {
		offset, length := p.region.ReadableWindow()
		if length == 0 {
			return nil
		}
		if _, err := w.Write(p.region.Data()[offset : offset+length]); err != nil {
			return fmt.Errorf("write playback: %w", err)
		}

		frames := uint32(length) / p.region.FrameSize()
		if err := p.region.CommitReadFrames(frames); err != nil {
			return err
		}
		p.framesReceived.Add(uint64(frames))
	}
}

// ServeCapture fills one period at a time from r and waits for the client to
// consume it. When r is exhausted the peer hangs up the audio socket so the
// client's next request fails, and ServeCapture returns nil.
func (p *Peer) ServeCapture(ctx context.Context, r io.Reader) error {
	stop := context.AfterFunc(ctx, func() { p.audio.Close() })
	defer stop()

	pace := p.pacer()
	defer pace.Stop()

	frameSize := int(p.region.FrameSize())
	for {
		offset, length := p.region.WritableWindow()
		if length == 0 {
			p.region.AddOverrun()
			p.logger.Warn("capture overrun", slog.Uint64("overruns", uint64(p.region.NumOverruns())))
			return fmt.Errorf("capture ring full")
		}

		n, err := io.ReadFull(r, p.region.Data()[offset:offset+length])
		frames := n / frameSize
		if frames == 0 {
			if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				p.audio.Close()
				return nil
			}
			return fmt.Errorf("read capture source: %w", err)
		}

		if err := p.region.CommitWrittenFrames(uint32(frames)); err != nil {
			return err
		}
		if err := p.audio.DataReady(uint32(frames)); err != nil {
			return p.servingEnded(ctx, err)
		}
		p.framesSent.Add(uint64(frames))

		msg, err := p.audio.ReadAudioMessage()
		if err != nil {
			return p.servingEnded(ctx, err)
		}
		if msg.ID != protocol.AudioMessageDataCaptured {
			return fmt.Errorf("%w: expected %s, got %s", protocol.ErrUnexpectedMessage, protocol.AudioMessageDataCaptured, msg.ID)
		}
		pace.Wait()
	}
}

// SendError delivers a stream error in place of the next request
func (p *Peer) SendError(code int32) error {
	return p.audio.SendAudioMessage(protocol.AudioMessage{ID: protocol.AudioMessageRequestData, Error: code})
}

// servingEnded turns a hang-up by the client into a clean return
func (p *Peer) servingEnded(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, io.EOF) || errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET) || errors.Is(err, net.ErrClosed) {
		p.logger.Debug("client hung up", slog.Any("error", err))
		return nil
	}
	return err
}

// serveAdmin records administrative messages until the client closes its
// server socket
func (p *Peer) serveAdmin() {
	defer close(p.adminDone)

	for {
		data, fds, err := p.admin.ReadServerMessage()
		for _, fd := range fds {
			unix.Close(fd)
		}
		if err != nil || len(data) == 0 {
			return
		}

		msg, err := protocol.DecodeDisconnectStreamMessage(data)
		if err != nil {
			p.logger.Warn("ignoring server message", slog.Any("error", err))
			continue
		}

		p.mu.Lock()
		p.disconnects = append(p.disconnects, msg)
		p.mu.Unlock()
		p.logger.Debug("stream disconnect received", slog.Uint64("disconnect_id", uint64(msg.StreamID)))
	}
}

// Done is closed once the client has closed its server socket and every
// message sent before that has been recorded
func (p *Peer) Done() <-chan struct{} {
	return p.adminDone
}

// Disconnects returns the disconnect messages received so far
func (p *Peer) Disconnects() []protocol.DisconnectStreamMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]protocol.DisconnectStreamMessage(nil), p.disconnects...)
}

// Stats returns a snapshot of the peer's counters
func (p *Peer) Stats() Stats {
	return Stats{
		Requests:       p.requests.Load(),
		FramesReceived: p.framesReceived.Load(),
		FramesSent:     p.framesSent.Load(),
		Overruns:       p.region.NumOverruns(),
	}
}

// Close hangs up both sockets, waits for the admin reader and unmaps the region
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		p.audio.Close()
		p.admin.Close()
		<-p.adminDone
		p.region.Close()
	})
	return nil
}

// pacer sleeps one period between exchanges when realtime pacing is enabled
type pacer struct {
	ticker *time.Ticker
}

func (p *Peer) pacer() pacer {
	if !p.cfg.Realtime {
		return pacer{}
	}
	period := time.Duration(p.cfg.BlockSize) * time.Second / time.Duration(p.cfg.Format.Rate)
	return pacer{ticker: time.NewTicker(period)}
}

func (p pacer) Wait() {
	if p.ticker != nil {
		<-p.ticker.C
	}
}

func (p pacer) Stop() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}

// ABOUTME: Buffer release callbacks bound to every buffer a stream hands out
// ABOUTME: Commits frames to shared memory then notifies the server over the audio socket
package stream

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/Resonate-Protocol/cras-go/pkg/audio"
	"github.com/Resonate-Protocol/cras-go/pkg/metrics"
	"github.com/Resonate-Protocol/cras-go/pkg/shm"
)

var (
	errStreamClosed  = errors.New("stream closed")
	errBufferPending = errors.New("a buffer is still pending release")
)

// streamData owns the audio socket and the mapped region and interacts with
// the server's audio thread on behalf of the stream. Release runs from a path
// that cannot fail, so every error here is logged and counted, never returned.
//
// mu guards the region. While a buffer is pending the region stays mapped,
// even across Close, and is unmapped by the release instead.
type streamData struct {
	streamID  uint32
	audioSock AudioSocket
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu      sync.Mutex
	region  *shm.Region
	pending bool
	closed  bool
}

// currentRegion returns the attached region, or nil
func (d *streamData) currentRegion() *shm.Region {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	return d.region
}

// attach swaps in region, unmapping the previous one
func (d *streamData) attach(region *shm.Region) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case d.closed:
		return errStreamClosed
	case d.pending:
		return errBufferPending
	}

	if d.region != nil {
		if err := d.region.Close(); err != nil {
			d.releaseFailed("unmap", err)
		}
	}
	d.region = region
	return nil
}

// window marks a buffer pending and returns the part of the region it covers
func (d *streamData) window(direction audio.Direction) (*shm.Region, []byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed || d.region == nil {
		return nil, nil, errStreamClosed
	}

	var offset, length int
	if direction == audio.DirectionCapture {
		offset, length = d.region.ReadableWindow()
	} else {
		offset, length = d.region.WritableWindow()
	}
	d.pending = true
	return d.region, d.region.Data()[offset : offset+length], nil
}

// abandon clears the pending mark for a buffer that was never handed out
func (d *streamData) abandon() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = false
	d.unmapIfClosed()
}

// release commits frames for the pending buffer and tells the server
func (d *streamData) release(direction audio.Direction, frames int) {
	n := clampFrames(frames)

	d.mu.Lock()
	if d.region != nil {
		var err error
		if direction == audio.DirectionCapture {
			err = d.region.CommitReadFrames(n)
		} else {
			err = d.region.CommitWrittenFrames(n)
		}
		if err != nil {
			d.releaseFailed("commit", err)
		}
	}
	d.pending = false
	d.unmapIfClosed()
	d.mu.Unlock()

	if direction == audio.DirectionCapture {
		if err := d.audioSock.CaptureReady(n); err != nil {
			d.releaseFailed("capture_ready", err)
		}
	} else {
		if err := d.audioSock.DataReady(n); err != nil {
			d.releaseFailed("data_ready", err)
		}
	}

	d.metrics.FramesCommit(direction.String(), int(n))
}

// close marks the stream closed and unmaps the region unless a buffer is
// still pending
func (d *streamData) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.unmapIfClosed()
}

// unmapIfClosed must be called with mu held
func (d *streamData) unmapIfClosed() {
	if !d.closed || d.pending || d.region == nil {
		return
	}
	if err := d.region.Close(); err != nil {
		d.releaseFailed("unmap", err)
	}
	d.region = nil
}

// playbackDrop releases playback buffers. It references the stream so the
// stream cannot be finalized while a buffer is outstanding.
type playbackDrop struct {
	stream *Stream
}

// Trigger implements audio.BufferDrop
func (d playbackDrop) Trigger(frames int) {
	d.stream.controls.release(audio.DirectionPlayback, frames)
}

// captureDrop releases capture buffers
type captureDrop struct {
	stream *Stream
}

// Trigger implements audio.BufferDrop
func (d captureDrop) Trigger(frames int) {
	d.stream.controls.release(audio.DirectionCapture, frames)
}

func (d *streamData) releaseFailed(op string, err error) {
	d.logger.Error("buffer release failed",
		slog.Uint64("stream_id", uint64(d.streamID)),
		slog.String("op", op),
		slog.Any("error", err),
	)
	d.metrics.ReleaseFailed(op)
}

func clampFrames(frames int) uint32 {
	if frames < 0 {
		return 0
	}
	return uint32(frames)
}

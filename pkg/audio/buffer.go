// ABOUTME: Buffered playback and capture abstraction
// ABOUTME: Buffers hand a window of stream memory to the caller and report back on release
package audio

import (
	"errors"
	"fmt"
	"io"
)

// ErrInvalidBufferLength is returned when a buffer is not a whole number of frames
var ErrInvalidBufferLength = errors.New("buffer length is not a multiple of the frame size")

// BufferDrop is notified once when a buffer is released, with the number of
// frames the caller produced or consumed.
type BufferDrop interface {
	Trigger(frames int)
}

// PlaybackBufferStream hands out buffers to be filled with samples for playback
type PlaybackBufferStream interface {
	NextPlaybackBuffer() (*PlaybackBuffer, error)
}

// CaptureBufferStream hands out buffers holding captured samples
type CaptureBufferStream interface {
	NextCaptureBuffer() (*CaptureBuffer, error)
}

// PlaybackBuffer is a writable window into stream memory. It must be released
// with Commit or CommitFrames before the next buffer is requested.
type PlaybackBuffer struct {
	frameSize int
	buf       []byte
	offset    int
	drop      BufferDrop
	released  bool
}

// NewPlaybackBuffer wraps buf, which must hold a whole number of frames
func NewPlaybackBuffer(frameSize int, buf []byte, drop BufferDrop) (*PlaybackBuffer, error) {
	if err := checkLength(frameSize, len(buf)); err != nil {
		return nil, err
	}
	return &PlaybackBuffer{
		frameSize: frameSize,
		buf:       buf,
		drop:      drop,
	}, nil
}

// FrameSize returns the size of one frame in bytes
func (b *PlaybackBuffer) FrameSize() int {
	return b.frameSize
}

// FrameCapacity returns how many frames fit in the buffer
func (b *PlaybackBuffer) FrameCapacity() int {
	return len(b.buf) / b.frameSize
}

// Bytes exposes the whole window for callers that fill it in place.
// Pair it with CommitFrames.
func (b *PlaybackBuffer) Bytes() []byte {
	return b.buf
}

// Write copies p after any previously written bytes. A write that does not
// fit is truncated and reports io.ErrShortWrite.
func (b *PlaybackBuffer) Write(p []byte) (int, error) {
	if b.released {
		return 0, io.ErrClosedPipe
	}
	n := copy(b.buf[b.offset:], p)
	b.offset += n
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Commit releases the buffer, reporting the whole frames written through Write
func (b *PlaybackBuffer) Commit() {
	b.CommitFrames(b.offset / b.frameSize)
}

// CommitFrames releases the buffer, reporting frames written. Only the first
// release has any effect.
func (b *PlaybackBuffer) CommitFrames(frames int) {
	if b.released {
		return
	}
	b.released = true
	if b.drop != nil {
		b.drop.Trigger(frames)
	}
}

// CaptureBuffer is a readable window of captured samples
type CaptureBuffer struct {
	frameSize int
	buf       []byte
	offset    int
	drop      BufferDrop
	released  bool
}

// NewCaptureBuffer wraps buf, which must hold a whole number of frames
func NewCaptureBuffer(frameSize int, buf []byte, drop BufferDrop) (*CaptureBuffer, error) {
	if err := checkLength(frameSize, len(buf)); err != nil {
		return nil, err
	}
	return &CaptureBuffer{
		frameSize: frameSize,
		buf:       buf,
		drop:      drop,
	}, nil
}

// FrameSize returns the size of one frame in bytes
func (b *CaptureBuffer) FrameSize() int {
	return b.frameSize
}

// Frames returns how many captured frames the buffer holds
func (b *CaptureBuffer) Frames() int {
	return len(b.buf) / b.frameSize
}

// Bytes exposes the captured samples
func (b *CaptureBuffer) Bytes() []byte {
	return b.buf
}

// Read copies captured bytes not yet read into p
func (b *CaptureBuffer) Read(p []byte) (int, error) {
	if b.offset >= len(b.buf) {
		return 0, io.EOF
	}
	n := copy(p, b.buf[b.offset:])
	b.offset += n
	return n, nil
}

// Commit releases the buffer, reporting the whole frames consumed through Read
func (b *CaptureBuffer) Commit() {
	b.CommitFrames(b.offset / b.frameSize)
}

// CommitFrames releases the buffer, reporting frames consumed
func (b *CaptureBuffer) CommitFrames(frames int) {
	if b.released {
		return
	}
	b.released = true
	if b.drop != nil {
		b.drop.Trigger(frames)
	}
}

func checkLength(frameSize, length int) error {
	if frameSize <= 0 || length%frameSize != 0 {
		return fmt.Errorf("%w: length=%d frame_size=%d", ErrInvalidBufferLength, length, frameSize)
	}
	return nil
}

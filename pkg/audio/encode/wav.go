// ABOUTME: WAV file writer
// ABOUTME: Records int32 samples to a PCM WAV file with go-audio/wav
package encode

import (
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// WAVWriter writes samples in the 24-bit range to a WAV file of the given
// bit depth
type WAVWriter struct {
	encoder  *wav.Encoder
	buf      *goaudio.IntBuffer
	bitDepth int
	samples  int64
}

// NewWAVWriter creates a writer. The header is finalised by Close, which
// seeks back to patch the chunk sizes.
func NewWAVWriter(w io.WriteSeeker, rate, channels, bitDepth int) (*WAVWriter, error) {
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth: %d", bitDepth)
	}

	return &WAVWriter{
		encoder: wav.NewEncoder(w, rate, bitDepth, channels, wavFormatPCM),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
			SourceBitDepth: bitDepth,
		},
		bitDepth: bitDepth,
	}, nil
}

// Write appends interleaved samples
func (w *WAVWriter) Write(samples []int32) error {
	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]

	for i, s := range samples {
		w.buf.Data[i] = fromTwentyFour(s, w.bitDepth)
	}
	if err := w.encoder.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	w.samples += int64(len(samples))
	return nil
}

// Samples returns how many samples have been written
func (w *WAVWriter) Samples() int64 {
	return w.samples
}

// Close finalises the WAV header. It does not close the underlying writer.
func (w *WAVWriter) Close() error {
	if err := w.encoder.Close(); err != nil {
		return fmt.Errorf("failed to finalise WAV file: %w", err)
	}
	return nil
}

func fromTwentyFour(sample int32, bitDepth int) int {
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned
		return int(sample>>16) + 128
	case 16:
		return int(sample >> 8)
	case 32:
		return int(sample) << 8
	default:
		return int(sample)
	}
}

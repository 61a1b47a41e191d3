// ABOUTME: WAV file source
// ABOUTME: Decodes PCM WAV files of any bit depth with go-audio/wav
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWAVFile is returned when a file does not carry a valid RIFF/WAVE header
var ErrNotWAVFile = errors.New("not a valid WAV file")

// WAVSource reads from a WAV file
type WAVSource struct {
	file     *os.File
	decoder  *wav.Decoder
	buf      *goaudio.IntBuffer
	bitDepth int
}

// NewWAVSource opens a WAV file
func NewWAVSource(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotWAVFile, path)
	}
	decoder.ReadInfo()
	if err := decoder.Err(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}

	return &WAVSource{
		file:     f,
		decoder:  decoder,
		bitDepth: int(decoder.BitDepth),
	}, nil
}

func (s *WAVSource) Read(samples []int32) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	if s.buf == nil || cap(s.buf.Data) < len(samples) {
		s.buf = &goaudio.IntBuffer{
			Data:   make([]int, len(samples)),
			Format: s.decoder.Format(),
		}
	}
	s.buf.Data = s.buf.Data[:len(samples)]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("failed to read WAV samples: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		v := int32(s.buf.Data[i])
		if s.bitDepth == 8 {
			// 8-bit WAV samples are unsigned
			v -= 128
		}
		samples[i] = scaleTo24(v, s.bitDepth)
	}
	return n, nil
}

func (s *WAVSource) SampleRate() int { return int(s.decoder.SampleRate) }
func (s *WAVSource) Channels() int   { return int(s.decoder.NumChans) }
func (s *WAVSource) Close() error    { return s.file.Close() }

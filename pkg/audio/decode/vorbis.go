// ABOUTME: Ogg Vorbis file source
// ABOUTME: Decodes Vorbis audio with oggvorbis and converts float samples to int32
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/cras-go/pkg/audio"
	"github.com/jfreymuth/oggvorbis"
)

// VorbisSource reads from an Ogg Vorbis file
type VorbisSource struct {
	file   *os.File
	reader *oggvorbis.Reader
	buf    []float32
}

// NewVorbisSource opens an Ogg Vorbis file
func NewVorbisSource(path string) (*VorbisSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Ogg file: %w", err)
	}

	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode Ogg Vorbis: %w", err)
	}

	return &VorbisSource{
		file:   f,
		reader: reader,
	}, nil
}

func (s *VorbisSource) Read(samples []int32) (int, error) {
	// the reader only returns whole frames
	want := len(samples) - len(samples)%s.reader.Channels()
	if cap(s.buf) < want {
		s.buf = make([]float32, want)
	}
	buf := s.buf[:want]

	n, err := s.reader.Read(buf)
	for i := 0; i < n; i++ {
		samples[i] = floatTo24(buf[i])
	}
	if n > 0 && err == io.EOF {
		err = nil
	}
	return n, err
}

func (s *VorbisSource) SampleRate() int { return s.reader.SampleRate() }
func (s *VorbisSource) Channels() int   { return s.reader.Channels() }
func (s *VorbisSource) Close() error    { return s.file.Close() }

// floatTo24 converts a [-1, 1] sample to the 24-bit range, clipping
func floatTo24(v float32) int32 {
	scaled := int64(v * audio.Max24Bit)
	if scaled > audio.Max24Bit {
		return audio.Max24Bit
	}
	if scaled < audio.Min24Bit {
		return audio.Min24Bit
	}
	return int32(scaled)
}

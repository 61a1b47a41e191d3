// ABOUTME: FLAC file source
// ABOUTME: Decodes FLAC audio frame by frame with mewkiz/flac
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
)

// FLACSource reads from a FLAC file
type FLACSource struct {
	file     *os.File
	stream   *flac.Stream
	channels int
	bitDepth int

	// interleaved samples of the last parsed frame not yet returned
	pending []int32
}

// NewFLACSource opens a FLAC file
func NewFLACSource(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	return &FLACSource{
		file:     f,
		stream:   stream,
		channels: int(stream.Info.NChannels),
		bitDepth: int(stream.Info.BitsPerSample),
	}, nil
}

func (s *FLACSource) Read(samples []int32) (int, error) {
	read := 0
	for read < len(samples) {
		if len(s.pending) == 0 {
			frame, err := s.stream.ParseNext()
			if err == io.EOF {
				if read == 0 {
					return 0, io.EOF
				}
				return read, nil
			}
			if err != nil {
				return read, fmt.Errorf("failed to parse FLAC frame: %w", err)
			}

			n := int(frame.BlockSize)
			s.pending = make([]int32, 0, n*s.channels)
			for i := 0; i < n; i++ {
				for ch := 0; ch < s.channels; ch++ {
					s.pending = append(s.pending, scaleTo24(frame.Subframes[ch].Samples[i], s.bitDepth))
				}
			}
		}

		n := copy(samples[read:], s.pending)
		s.pending = s.pending[n:]
		read += n
	}
	return read, nil
}

func (s *FLACSource) SampleRate() int { return int(s.stream.Info.SampleRate) }
func (s *FLACSource) Channels() int   { return s.channels }
func (s *FLACSource) Close() error    { return s.file.Close() }

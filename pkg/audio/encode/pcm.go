// ABOUTME: PCM audio encoder
// ABOUTME: Encodes int32 samples to any CRAS sample format
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/cras-go/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	format audio.SampleFormat
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.SampleFormat) (*PCMEncoder, error) {
	if format.Bytes() == 0 {
		return nil, fmt.Errorf("unsupported sample format: %s", format)
	}

	return &PCMEncoder{
		format: format,
	}, nil
}

// Encode converts int32 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	output := make([]byte, len(samples)*e.format.Bytes())
	e.EncodeTo(output, samples)
	return output, nil
}

// EncodeTo writes as many whole samples as fit in dst and returns the number
// of bytes written
func (e *PCMEncoder) EncodeTo(dst []byte, samples []int32) int {
	width := e.format.Bytes()
	n := min(len(samples), len(dst)/width)

	for i := 0; i < n; i++ {
		out := dst[i*width:]
		sample := samples[i]
		switch e.format {
		case audio.FormatU8:
			out[0] = byte((sample >> 16) + 128)
		case audio.FormatS16LE:
			binary.LittleEndian.PutUint16(out, uint16(audio.SampleToInt16(sample)))
		case audio.FormatS24_3LE:
			b := audio.SampleTo24Bit(sample)
			copy(out, b[:])
		case audio.FormatS24LE:
			binary.LittleEndian.PutUint32(out, uint32(sample<<8>>8))
		case audio.FormatS32LE:
			binary.LittleEndian.PutUint32(out, uint32(sample<<8))
		}
	}
	return n * width
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}

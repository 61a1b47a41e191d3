// ABOUTME: PCM audio decoder
// ABOUTME: Decodes raw stream memory in any CRAS sample format to int32 samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/cras-go/pkg/audio"
)

// PCMDecoder decodes PCM audio
type PCMDecoder struct {
	format audio.SampleFormat
}

// NewPCM creates a new PCM decoder
func NewPCM(format audio.SampleFormat) (Decoder, error) {
	if format.Bytes() == 0 {
		return nil, fmt.Errorf("unsupported sample format: %s", format)
	}

	return &PCMDecoder{
		format: format,
	}, nil
}

// Decode converts PCM bytes to int32 samples. Trailing bytes that do not
// form a whole sample are ignored.
func (d *PCMDecoder) Decode(data []byte) ([]int32, error) {
	width := d.format.Bytes()
	numSamples := len(data) / width
	samples := make([]int32, numSamples)

	for i := 0; i < numSamples; i++ {
		b := data[i*width:]
		switch d.format {
		case audio.FormatU8:
			samples[i] = (int32(b[0]) - 128) << 16
		case audio.FormatS16LE:
			samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(b)))
		case audio.FormatS24_3LE:
			samples[i] = audio.SampleFrom24Bit([3]byte{b[0], b[1], b[2]})
		case audio.FormatS24LE:
			// low 24 bits of a 32-bit container, sign extended
			samples[i] = int32(binary.LittleEndian.Uint32(b)<<8) >> 8
		case audio.FormatS32LE:
			samples[i] = int32(binary.LittleEndian.Uint32(b)) >> 8
		}
	}
	return samples, nil
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}

// ABOUTME: Decoder and Source interfaces
// ABOUTME: Opens a file source by extension
package decode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Decoder decodes a block of encoded audio to PCM int32 samples
type Decoder interface {
	// Decode converts encoded audio data to PCM samples
	Decode(data []byte) ([]int32, error)

	// Close releases decoder resources
	Close() error
}

// Source streams interleaved int32 samples in the 24-bit range
type Source interface {
	// Read fills samples and returns how many were written. It returns
	// io.EOF once the source is exhausted.
	Read(samples []int32) (int, error)
	SampleRate() int
	Channels() int
	Close() error
}

// Open creates a source for the file at path, chosen by extension. An empty
// path returns a 440Hz stereo test tone at 48kHz.
func Open(path string) (Source, error) {
	if path == "" {
		return NewTone(DefaultToneRate, 2, DefaultToneFrequency), nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		return NewWAVSource(path)
	case ".mp3":
		return NewMP3Source(path)
	case ".flac":
		return NewFLACSource(path)
	case ".ogg", ".oga":
		return NewVorbisSource(path)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .wav, .mp3, .flac, .ogg)", ext)
	}
}

// scaleTo24 shifts a sample of bitDepth bits into the 24-bit range
func scaleTo24(sample int32, bitDepth int) int32 {
	switch {
	case bitDepth == 24:
		return sample
	case bitDepth < 24:
		return sample << (24 - bitDepth)
	default:
		return sample >> (bitDepth - 24)
	}
}

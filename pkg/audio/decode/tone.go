// ABOUTME: Test tone generator source
// ABOUTME: Generates a sine wave when no input file is given
package decode

import (
	"math"
)

const (
	DefaultToneRate      = 48000
	DefaultToneFrequency = 440.0 // A4
)

// ToneSource generates an endless sine wave at half volume
type ToneSource struct {
	rate      int
	channels  int
	frequency float64
	frame     uint64
}

// NewTone creates a test tone generator
func NewTone(rate, channels int, frequency float64) *ToneSource {
	return &ToneSource{
		rate:      rate,
		channels:  channels,
		frequency: frequency,
	}
}

func (s *ToneSource) Read(samples []int32) (int, error) {
	numFrames := len(samples) / s.channels

	for i := 0; i < numFrames; i++ {
		t := float64(s.frame+uint64(i)) / float64(s.rate)
		value := int32(math.Sin(2*math.Pi*s.frequency*t) * 0.5 * 8388607)
		for ch := 0; ch < s.channels; ch++ {
			samples[i*s.channels+ch] = value
		}
	}
	s.frame += uint64(numFrames)

	return numFrames * s.channels, nil
}

func (s *ToneSource) SampleRate() int { return s.rate }
func (s *ToneSource) Channels() int   { return s.channels }
func (s *ToneSource) Close() error    { return nil }

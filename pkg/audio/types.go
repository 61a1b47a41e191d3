// ABOUTME: Audio type definitions
// ABOUTME: Defines sample formats, stream direction and sample conversions
package audio

import (
	"fmt"
	"strings"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// SampleFormat identifies how one sample of one channel is laid out in memory
type SampleFormat int

const (
	FormatU8 SampleFormat = iota
	FormatS16LE
	FormatS24LE   // 24-bit sample in a 32-bit little-endian container
	FormatS24_3LE // packed 3-byte little-endian
	FormatS32LE
)

// Bytes returns the size of one sample in bytes
func (f SampleFormat) Bytes() int {
	switch f {
	case FormatU8:
		return 1
	case FormatS16LE:
		return 2
	case FormatS24_3LE:
		return 3
	case FormatS24LE, FormatS32LE:
		return 4
	default:
		return 0
	}
}

// String returns the ALSA-style name of the format
func (f SampleFormat) String() string {
	switch f {
	case FormatU8:
		return "U8"
	case FormatS16LE:
		return "S16_LE"
	case FormatS24LE:
		return "S24_LE"
	case FormatS24_3LE:
		return "S24_3LE"
	case FormatS32LE:
		return "S32_LE"
	default:
		return fmt.Sprintf("SampleFormat(%d)", int(f))
	}
}

// ParseSampleFormat parses a format name such as "S16_LE" or "s16le"
func ParseSampleFormat(name string) (SampleFormat, error) {
	switch strings.ToUpper(strings.ReplaceAll(name, "_", "")) {
	case "U8":
		return FormatU8, nil
	case "S16LE", "S16":
		return FormatS16LE, nil
	case "S24LE", "S24":
		return FormatS24LE, nil
	case "S243LE":
		return FormatS24_3LE, nil
	case "S32LE", "S32":
		return FormatS32LE, nil
	}
	return 0, fmt.Errorf("unknown sample format: %q", name)
}

// Direction is the direction audio flows relative to the client
type Direction int

const (
	DirectionPlayback Direction = iota
	DirectionCapture
)

func (d Direction) String() string {
	switch d {
	case DirectionPlayback:
		return "playback"
	case DirectionCapture:
		return "capture"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection parses "playback" or "capture"
func ParseDirection(name string) (Direction, error) {
	switch strings.ToLower(name) {
	case "playback", "output":
		return DirectionPlayback, nil
	case "capture", "input":
		return DirectionCapture, nil
	}
	return 0, fmt.Errorf("unknown stream direction: %q", name)
}

// Format describes the PCM layout of a stream
type Format struct {
	SampleFormat SampleFormat
	Rate         int
	Channels     int
}

// FrameBytes returns the size in bytes of one frame (one sample per channel)
func (f Format) FrameBytes() int {
	return f.SampleFormat.Bytes() * f.Channels
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch", f.SampleFormat, f.Rate, f.Channels)
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit (or 16-bit) to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

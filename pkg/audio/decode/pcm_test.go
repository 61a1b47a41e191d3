// ABOUTME: Tests for PCM decoder
// ABOUTME: Tests decoding of every stream sample format
package decode

import (
	"testing"

	"github.com/Resonate-Protocol/cras-go/pkg/audio"
)

func TestNewPCM(t *testing.T) {
	decoder, err := NewPCM(audio.FormatS16LE)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	if decoder == nil {
		t.Fatal("expected decoder to be created")
	}
}

func TestPCMDecode16Bit(t *testing.T) {
	decoder, err := NewPCM(audio.FormatS16LE)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	// 0x00, 0x01 -> 0x0100 = 256 (16-bit) -> 256<<8 (24-bit)
	// 0x02, 0x03 -> 0x0302 = 770 (16-bit) -> 770<<8 (24-bit)
	input := []byte{0x00, 0x01, 0x02, 0x03}
	output, err := decoder.Decode(input)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(output) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(output))
	}
	if output[0] != 256<<8 {
		t.Errorf("expected first sample %d, got %d", 256<<8, output[0])
	}
	if output[1] != 770<<8 {
		t.Errorf("expected second sample %d, got %d", 770<<8, output[1])
	}
}

func TestPCMDecodeFormats(t *testing.T) {
	tests := []struct {
		name     string
		format   audio.SampleFormat
		input    []byte
		expected []int32
	}{
		{
			name:     "U8 midpoint and extremes",
			format:   audio.FormatU8,
			input:    []byte{0x80, 0xFF, 0x00},
			expected: []int32{0, 127 << 16, -128 << 16},
		},
		{
			name:     "S24_3LE packed",
			format:   audio.FormatS24_3LE,
			input:    []byte{0x00, 0x01, 0x02, 0xFF, 0xFF, 0xFF},
			expected: []int32{0x020100, -1},
		},
		{
			name:     "S24_LE in 32-bit container",
			format:   audio.FormatS24LE,
			input:    []byte{0x03, 0x04, 0x05, 0x00, 0x00, 0x00, 0x80, 0x00},
			expected: []int32{0x050403, audio.Min24Bit},
		},
		{
			name:     "S32_LE scaled down",
			format:   audio.FormatS32LE,
			input:    []byte{0x00, 0x01, 0x02, 0x03},
			expected: []int32{0x030201},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoder, err := NewPCM(tt.format)
			if err != nil {
				t.Fatalf("failed to create decoder: %v", err)
			}

			output, err := decoder.Decode(tt.input)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if len(output) != len(tt.expected) {
				t.Fatalf("expected %d samples, got %d", len(tt.expected), len(output))
			}
			for i := range tt.expected {
				if output[i] != tt.expected[i] {
					t.Errorf("sample %d: expected %d, got %d", i, tt.expected[i], output[i])
				}
			}
		})
	}
}

func TestNewPCM_UnsupportedFormat(t *testing.T) {
	decoder, err := NewPCM(audio.SampleFormat(42))
	if err == nil {
		t.Fatal("expected error for unsupported format, got nil")
	}

	if decoder != nil {
		t.Fatal("expected decoder to be nil for unsupported format")
	}

	expectedError := "unsupported sample format: SampleFormat(42)"
	if err.Error() != expectedError {
		t.Errorf("expected error %q, got %q", expectedError, err.Error())
	}
}

func TestPCMDecode_EmptyInput(t *testing.T) {
	decoder, err := NewPCM(audio.FormatS16LE)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	output, err := decoder.Decode([]byte{})
	if err != nil {
		t.Fatalf("decode failed with empty input: %v", err)
	}

	if len(output) != 0 {
		t.Errorf("expected 0 samples from empty input, got %d", len(output))
	}
}

func TestPCMDecode_PartialSample(t *testing.T) {
	decoder, err := NewPCM(audio.FormatS16LE)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}

	output, err := decoder.Decode([]byte{0x01, 0x00, 0x02})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(output) != 1 {
		t.Errorf("expected trailing byte to be ignored, got %d samples", len(output))
	}
}

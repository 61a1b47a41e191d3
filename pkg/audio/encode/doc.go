// ABOUTME: Audio encoder package for writing samples in stream formats
// ABOUTME: Provides the PCM encoder for CRAS sample formats and a WAV file writer
// Package encode converts int32 samples in the 24-bit range back to bytes.
//
// PCMEncoder produces any sample format a CRAS stream can carry and can
// write straight into a playback buffer. WAVWriter records samples to a
// WAV file with go-audio/wav.
//
// Example:
//
//	encoder, err := encode.NewPCM(audio.FormatS16LE)
//	n := encoder.EncodeTo(buf.Bytes(), samples)
//	buf.CommitFrames(n / buf.FrameSize())
package encode

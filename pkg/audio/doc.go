// ABOUTME: Audio fundamentals package providing core types and buffer handles
// ABOUTME: Defines SampleFormat, Format, Direction and the playback/capture buffer abstraction
// Package audio provides the audio types shared by the stream, protocol and CLI packages.
//
// This package defines:
//   - SampleFormat, Format and Direction: the static parameters of a stream
//   - PlaybackBuffer and CaptureBuffer: transient windows into stream memory
//   - BufferDrop: the hook a stream binds to a buffer so releasing it reaches the server
//
// Samples travel through the decode/encode pipeline as int32 values
// left-justified in 24 bits; see SampleFromInt16 and SampleTo24Bit.
//
// Example:
//
//	buf, err := s.NextPlaybackBuffer()
//	if err != nil {
//	    return err
//	}
//	n, _ := buf.Write(pcm)
//	buf.Commit() // reports n/frameSize frames
package audio

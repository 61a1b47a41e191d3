// ABOUTME: Audio decoding package for the playback pipeline
// ABOUTME: Provides file sources for WAV, MP3, FLAC and Ogg Vorbis plus raw PCM decoding
// Package decode turns encoded audio into int32 samples.
//
// Sources stream interleaved samples from a file. Every source scales its
// output to the 24-bit range so later stages can treat all inputs alike.
//
// Supported containers: WAV, MP3, FLAC, Ogg Vorbis. An empty path opens a
// sine test tone.
//
// PCMDecoder handles raw stream memory in any of the sample formats a CRAS
// stream can use, which is what the capture path reads back.
//
// Example:
//
//	src, err := decode.Open("song.flac")
//	if err != nil {
//	    return err
//	}
//	defer src.Close()
//	samples := make([]int32, 4096)
//	n, err := src.Read(samples)
package decode

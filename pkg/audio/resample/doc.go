// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts decoded audio to the rate of the CRAS stream
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates. Chunks may
// be fed one after another; the resampler keeps enough state to interpolate
// across their boundaries.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	n := r.Resample(inputSamples, outputSamples)
package resample

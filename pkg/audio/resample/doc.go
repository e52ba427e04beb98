// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts streamed audio to a fixed output rate
// Package resample provides streaming audio sample rate conversion.
//
// A Resampler owns a carry buffer and a fractional read position, so
// input may arrive in chunks of any size. Output is appended to a caller
// supplied slice.
//
// Example:
//
//	r := resample.New(48000, 1)
//	out = r.Resample(out[:0], captured, 44100)
package resample

// ABOUTME: PCM format conversion package
// ABOUTME: Normalizes arbitrary signed PCM to canonical 16-bit mono or stereo
// Package convert turns 8/16/24/32-bit signed PCM with any channel count
// into 16-bit samples with one or two channels.
//
// Narrowing uses arithmetic shifts and never rounds. 8-bit input is
// two's-complement signed, like every other width.
//
// Example:
//
//	samples := convert.ToInt16(nil, payload, format, 2)
//	out := convert.Int16ToBytes(nil, samples)
package convert

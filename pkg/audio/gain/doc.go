// ABOUTME: Fixed-point gain package
// ABOUTME: Q15 saturating volume scaling for 8, 16, 24 and 32-bit PCM
// Package gain scales PCM samples by a floating point gain using Q15
// fixed-point arithmetic:
//
//	scaled = clamp((sample*round(gain*32768) + bias) >> 15)
//
// where bias is +16384 for non-negative gain and -16384 otherwise, and
// clamp saturates to the sample width. A gain of 1.0 leaves samples
// untouched.
//
// Example:
//
//	gain.ApplyPCM(payload, 16, 0.5)
package gain

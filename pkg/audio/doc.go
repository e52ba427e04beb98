// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines the Format type and 24-bit sample packing helpers
// Package audio provides fundamental PCM audio types shared by the codec,
// converter, gain stage and mixer.
//
// This package defines:
//   - Format: sample rate, channel count and bit depth of a PCM stream
//   - Canonical: the 48kHz/16-bit internal format used by the mixer and
//     the denoise lane
//
// It also provides 24-bit packed sample helpers.
//
// Example:
//
//	format := audio.Format{
//	    SampleRate: 44100,
//	    Channels:   2,
//	    BitDepth:   24,
//	}
//
//	frames := format.Frames(len(payload))
package audio

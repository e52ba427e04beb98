// ABOUTME: Noise suppression package
// ABOUTME: Denoiser interface, 48kHz framing lane and a built-in noise gate
// Package denoise runs noise suppression on canonical audio.
//
// A Denoiser processes 10 ms frames of 48kHz mono 16-bit audio in place.
// A Lane adapts arbitrary PCM to that framing: it down-mixes to mono,
// resamples to 48kHz, buffers partial frames and returns the denoised
// samples once whole frames are available.
//
// Example:
//
//	lane := denoise.NewLane(denoise.NewGate(denoise.DefaultGateConfig()))
//	mono48k := lane.Process(payload, format)
package denoise

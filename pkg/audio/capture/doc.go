// ABOUTME: Audio capture package for sender input
// ABOUTME: Provides the Source interface plus tone, file and device sources
// Package capture provides PCM sources for the sender.
//
// A Source delivers interleaved little-endian signed PCM in the format it
// reports. File and tone sources pace themselves to real time so a send
// loop can read them back to back; device sources are paced by hardware.
//
// Supports: test tone, MP3 and FLAC files (looping), capture devices via
// miniaudio
//
// Example:
//
//	src, err := capture.Open("music.flac", audio.Format{})
//	n, err := src.Read(buf)
package capture

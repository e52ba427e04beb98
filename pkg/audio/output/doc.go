// ABOUTME: Audio output package for playing mixed audio
// ABOUTME: Provides the Sink interface with oto, malgo and PortAudio backends
// Package output provides audio playback sinks.
//
// Every sink plays interleaved 16-bit little-endian PCM. Backends:
// oto (default), malgo (miniaudio), PortAudio (build with -tags
// portaudio) and a discarding sink for headless receivers.
//
// Example:
//
//	sink, err := output.New("oto")
//	err = sink.Start(48000, 2)
//	err = sink.Write(chunk)
package output

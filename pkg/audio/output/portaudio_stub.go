//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"errors"
)

var errNoPortAudio = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

func (p *PortAudio) Start(sampleRate, channels int) error { return errNoPortAudio }
func (p *PortAudio) Write(pcm []byte) error               { return errNoPortAudio }
func (p *PortAudio) Stop() error                          { return nil }
func (p *PortAudio) IsStarted() bool                      { return false }

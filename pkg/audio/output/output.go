// ABOUTME: Audio sink interface definition
// ABOUTME: Common interface for playback backends and backend selection
package output

import (
	"fmt"
	"sync/atomic"
)

// Sink represents an audio playback device
type Sink interface {
	// Start initializes the device for 16-bit PCM at the given format
	Start(sampleRate, channels int) error

	// Write queues interleaved 16-bit little-endian PCM for playback
	Write(pcm []byte) error

	// Stop releases the device. A stopped sink may be started again.
	Stop() error

	// IsStarted reports whether Start has succeeded since the last Stop
	IsStarted() bool
}

// Backends lists the names accepted by New
var Backends = []string{"oto", "malgo", "portaudio", "none"}

// New creates a sink by backend name
func New(backend string) (Sink, error) {
	switch backend {
	case "", "oto":
		return NewOto(), nil
	case "malgo":
		return NewMalgo(), nil
	case "portaudio":
		return NewPortAudio(), nil
	case "none":
		return NewDiscard(), nil
	}
	return nil, fmt.Errorf("unknown output backend: %s (supported: %v)", backend, Backends)
}

// Discard is a sink that accepts and drops audio
type Discard struct {
	started atomic.Bool
	written atomic.Uint64
}

// NewDiscard creates a discarding sink
func NewDiscard() *Discard {
	return &Discard{}
}

func (d *Discard) Start(sampleRate, channels int) error {
	if sampleRate <= 0 || channels < 1 {
		return fmt.Errorf("invalid output format: %dHz %dch", sampleRate, channels)
	}
	d.started.Store(true)
	return nil
}

func (d *Discard) Write(pcm []byte) error {
	if !d.started.Load() {
		return fmt.Errorf("output not started")
	}
	d.written.Add(uint64(len(pcm)))
	return nil
}

func (d *Discard) Stop() error {
	d.started.Store(false)
	return nil
}

func (d *Discard) IsStarted() bool { return d.started.Load() }

// Written returns the total number of bytes accepted
func (d *Discard) Written() uint64 { return d.written.Load() }

//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output using PortAudio with a ring buffer
package output

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio output implementation
type PortAudio struct {
	mu         sync.Mutex
	stream     *portaudio.Stream
	ringBuffer *RingBuffer
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

// Start initializes PortAudio
func (p *PortAudio) Start(sampleRate, channels int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	ring := NewRingBuffer(sampleRate * channels * ringMillis / 1000)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), 0, func(out []int16) {
		ring.Read(out)
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	p.stream = stream
	p.ringBuffer = ring
	return nil
}

// Write queues audio, dropping what does not fit
func (p *PortAudio) Write(pcm []byte) error {
	p.mu.Lock()
	ring := p.ringBuffer
	p.mu.Unlock()

	if ring == nil {
		return fmt.Errorf("output not started")
	}
	ring.WriteBytes(pcm)
	return nil
}

// Stop releases resources
func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	stream := p.stream
	p.stream = nil
	p.ringBuffer = nil

	if err := stream.Stop(); err != nil {
		return err
	}
	if err := stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}

func (p *PortAudio) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil
}

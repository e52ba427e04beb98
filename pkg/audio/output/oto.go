// ABOUTME: Oto-based audio output implementation
// ABOUTME: Feeds a persistent oto player through a pipe
package output

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Oto output implementation using oto library
type Oto struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	sampleRate int
	channels   int
	ready      bool
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{}
}

// Start initializes the output device
func (o *Oto) Start(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready {
		return nil
	}

	// oto allows one context per process, so a restart reuses it
	if o.otoCtx != nil {
		if o.sampleRate != sampleRate || o.channels != channels {
			log.Printf("Warning: format change detected (%dHz %dch -> %dHz %dch) but oto doesn't support reinitialization. Continuing with existing context.",
				o.sampleRate, o.channels, sampleRate, channels)
		}
		if err := o.otoCtx.Resume(); err != nil {
			return fmt.Errorf("failed to resume oto context: %w", err)
		}
	} else {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			return fmt.Errorf("failed to create oto context: %w", err)
		}
		<-readyChan

		o.otoCtx = ctx
		o.sampleRate = sampleRate
		o.channels = channels
	}

	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels (oto)", o.sampleRate, o.channels)
	return nil
}

// Write outputs audio (blocks until the player has taken it)
func (o *Oto) Write(pcm []byte) error {
	o.mu.Lock()
	w := o.pipeWriter
	ready := o.ready
	o.mu.Unlock()

	if !ready || w == nil {
		return fmt.Errorf("output not started")
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Stop releases the player and suspends the context
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil && o.ready {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
	o.ready = false
	return nil
}

func (o *Oto) IsStarted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ready
}

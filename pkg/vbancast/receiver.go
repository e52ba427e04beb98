// ABOUTME: Receiver session owning listeners, mixer and playback sink
// ABOUTME: Start opens the sink and follows registry changes until Stop
package vbancast

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/vbancast/vbancast-go/internal/mixer"
	"github.com/vbancast/vbancast-go/internal/receiver"
	"github.com/vbancast/vbancast-go/pkg/audio"
	"github.com/vbancast/vbancast-go/pkg/audio/output"
	"github.com/vbancast/vbancast-go/pkg/denoise"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
	"golang.org/x/sync/errgroup"
)

// ListenerStats is a snapshot of one listening port
type ListenerStats = receiver.ListenerStats

// StreamStats is a snapshot of one received stream's jitter buffer
type StreamStats = mixer.StreamStats

// ReceiverStats combines listener and stream counters
type ReceiverStats struct {
	Listeners []ListenerStats
	Streams   []StreamStats
	Gain      float64
}

// ReceiverConfig holds receiver session configuration
type ReceiverConfig struct {
	// Registry provides the receiver endpoints (required)
	Registry *endpoint.Registry

	// Output names the playback backend (default "oto"), see output.Backends
	Output string

	// Sink overrides Output when set
	Sink output.Sink

	// Host is the address to bind listeners on, empty for all interfaces
	Host string

	// Gain is the initial master gain; 0 starts muted and a negative
	// value selects unity
	Gain float64

	// Denoiser creates noise suppressors (default: built-in gate)
	Denoiser denoise.Factory

	// OnFrame is called for every matched packet after mixing. It runs on
	// a listener goroutine and must not block.
	OnFrame func(endpoint.Endpoint, audio.Format)

	Debug bool
}

// Receiver plays the mix of every enabled receiver endpoint
type Receiver struct {
	config ReceiverConfig

	mu      sync.Mutex
	running bool
	gain    float64
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	mux     *receiver.Multiplexer
	mix     *mixer.Mixer
}

// NewReceiver creates a stopped receiver session
func NewReceiver(config ReceiverConfig) (*Receiver, error) {
	if config.Registry == nil {
		return nil, errors.New("receiver: no endpoint registry")
	}
	if config.Output == "" {
		config.Output = "oto"
	}
	if config.Gain < 0 {
		config.Gain = 1.0
	}
	return &Receiver{config: config, gain: config.Gain}, nil
}

// Start opens the playback sink and the listeners for every receiver
// endpoint. A sink failure is returned and nothing is left running; a
// port that cannot be bound is logged and retried on the next change.
func (r *Receiver) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrRunning
	}

	sink := r.config.Sink
	if sink == nil {
		var err error
		sink, err = output.New(r.config.Output)
		if err != nil {
			return err
		}
	}
	if err := sink.Start(audio.CanonicalRate, mixer.ChunkChannels); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	mix := mixer.New(sink, r.config.Debug)
	mix.SetGain(r.gain)

	mux := receiver.NewMultiplexer(ctx, receiver.Config{
		Host:     r.config.Host,
		Denoiser: r.config.Denoiser,
		Debug:    r.config.Debug,
	})
	onFrame := r.config.OnFrame
	unsubFrames := mux.Subscribe(func(f receiver.Frame) {
		mix.Feed(f.Endpoint, f.Payload, f.Format)
		if onFrame != nil {
			onFrame(f.Endpoint, f.Format)
		}
	})

	apply := func(eps []endpoint.Endpoint) {
		mix.Sync(eps)
		mux.Apply(eps)
	}

	reg := r.config.Registry
	events, unsubscribe := reg.Subscribe(eventBuffer)
	apply(reg.List())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mix.Run(gctx)
	})
	g.Go(func() error {
		return reconcile(gctx, events, reg, apply, r.config.Debug)
	})

	done := make(chan struct{})
	go func() {
		err := g.Wait()
		cancel()
		unsubscribe()
		unsubFrames()
		mux.Close()
		mix.Reset()
		if err := sink.Stop(); err != nil {
			log.Printf("Receiver: playback stop error: %v", err)
		}

		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		close(done)
	}()

	r.running = true
	r.cancel = cancel
	r.done = done
	r.err = nil
	r.mux = mux
	r.mix = mix

	log.Printf("Receiver: started on ports %v", mux.Ports())
	return nil
}

// Stop closes every listener, drops buffered audio and stops playback
func (r *Receiver) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	r.mux = nil
	r.mix = nil
	log.Printf("Receiver: stopped")
	return r.err
}

// SetGain sets the master gain, taking effect immediately when running
func (r *Receiver) SetGain(g float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gain = g
	if r.mix != nil {
		r.mix.SetGain(g)
	}
}

// Gain returns the master gain
func (r *Receiver) Gain() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gain
}

// Ports returns the ports currently listening
func (r *Receiver) Ports() []int {
	r.mu.Lock()
	mux := r.mux
	r.mu.Unlock()
	if mux == nil {
		return nil
	}
	return mux.Ports()
}

// Stats returns listener and stream counters of the running session
func (r *Receiver) Stats() ReceiverStats {
	r.mu.Lock()
	mux, mix, g := r.mux, r.mix, r.gain
	r.mu.Unlock()

	stats := ReceiverStats{Gain: g}
	if mux != nil {
		stats.Listeners = mux.Stats()
	}
	if mix != nil {
		stats.Streams = mix.Stats()
	}
	return stats
}

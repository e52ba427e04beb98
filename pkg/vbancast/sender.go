// ABOUTME: Sender session owning capture, socket and send pipeline
// ABOUTME: Start opens the capture source and follows registry changes until Stop
package vbancast

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/vbancast/vbancast-go/internal/sender"
	"github.com/vbancast/vbancast-go/pkg/audio"
	"github.com/vbancast/vbancast-go/pkg/audio/capture"
	"github.com/vbancast/vbancast-go/pkg/denoise"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
	"golang.org/x/sync/errgroup"
)

// TargetStats is a snapshot of one sender endpoint's counters
type TargetStats = sender.TargetStats

// SenderConfig holds sender session configuration
type SenderConfig struct {
	// Registry provides the sender endpoints (required)
	Registry *endpoint.Registry

	// Source names the capture source: "tone", "device" or an audio file
	Source string

	// Format requests a capture format for tone and device sources
	Format audio.Format

	// OpenSource overrides Source when set
	OpenSource func() (capture.Source, error)

	// LocalAddr is the local UDP address to send from (default ":0")
	LocalAddr string

	// Denoiser creates noise suppressors (default: built-in gate)
	Denoiser denoise.Factory

	Debug bool
}

// Sender captures audio and sends it to the registry's sender endpoints
type Sender struct {
	config SenderConfig

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	pipe    *sender.Sender
}

// NewSender creates a stopped sender session
func NewSender(config SenderConfig) (*Sender, error) {
	if config.Registry == nil {
		return nil, errors.New("sender: no endpoint registry")
	}
	if config.LocalAddr == "" {
		config.LocalAddr = ":0"
	}
	if config.OpenSource == nil {
		name, format := config.Source, config.Format
		config.OpenSource = func() (capture.Source, error) {
			return capture.Open(name, format)
		}
	}
	return &Sender{config: config}, nil
}

// Start opens the capture source and socket and begins sending. Device
// and socket failures are returned and nothing is left running.
func (s *Sender) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunning
	}

	source, err := s.config.OpenSource()
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}

	conn, err := net.ListenPacket("udp", s.config.LocalAddr)
	if err != nil {
		source.Close()
		return fmt.Errorf("failed to open socket: %w", err)
	}

	pipe, err := sender.New(sender.Config{
		Source:   source,
		Conn:     conn,
		Denoiser: s.config.Denoiser,
		Debug:    s.config.Debug,
	})
	if err != nil {
		source.Close()
		conn.Close()
		return err
	}

	reg := s.config.Registry
	events, unsubscribe := reg.Subscribe(eventBuffer)
	pipe.Update(reg.List())

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return pipe.Run(gctx)
	})
	g.Go(func() error {
		return reconcile(gctx, events, reg, pipe.Update, s.config.Debug)
	})

	done := make(chan struct{})
	go func() {
		err := g.Wait()
		cancel()
		unsubscribe()
		conn.Close()
		source.Close()

		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(done)
	}()

	s.running = true
	s.cancel = cancel
	s.done = done
	s.err = nil
	s.pipe = pipe

	log.Printf("Sender: capturing %s from %s", source.Format(), sourceName(s.config.Source))
	return nil
}

// Stop ends the session and releases the source and socket. It returns
// the error that ended the capture loop, if any.
func (s *Sender) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.pipe = nil
	log.Printf("Sender: stopped")
	return s.err
}

// Done is closed when the running session ends by itself or through Stop
func (s *Sender) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// Stats returns per-endpoint counters of the running session
func (s *Sender) Stats() []TargetStats {
	s.mu.Lock()
	pipe := s.pipe
	s.mu.Unlock()
	if pipe == nil {
		return nil
	}
	return pipe.Stats()
}

func sourceName(name string) string {
	if name == "" {
		return "tone"
	}
	return name
}

// ABOUTME: Sender pipeline: capture, optional denoise, per-endpoint gain and VBAN packetization
// ABOUTME: Sends each capture block to every enabled sender endpoint with its own frame counter
package sender

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vbancast/vbancast-go/pkg/audio"
	"github.com/vbancast/vbancast-go/pkg/audio/capture"
	"github.com/vbancast/vbancast-go/pkg/audio/convert"
	"github.com/vbancast/vbancast-go/pkg/audio/gain"
	"github.com/vbancast/vbancast-go/pkg/denoise"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
	"github.com/vbancast/vbancast-go/pkg/vban"
)

const (
	// DefaultReadMillis is the capture block length read per iteration
	DefaultReadMillis = 10

	// errorLogInterval limits send error logging per endpoint
	errorLogInterval = time.Second
)

// Resolver turns an endpoint host and port into a datagram address
type Resolver func(host string, port int) (net.Addr, error)

// ResolveUDP resolves with net.ResolveUDPAddr
func ResolveUDP(host string, port int) (net.Addr, error) {
	return net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
}

// Config holds sender configuration
type Config struct {
	Source     capture.Source
	Conn       net.PacketConn
	Denoiser   denoise.Factory // defaults to the built-in gate
	Resolver   Resolver        // defaults to ResolveUDP
	ReadMillis int             // capture block length, defaults to DefaultReadMillis
	Debug      bool
}

// targetState survives endpoint updates that keep the same ID
type targetState struct {
	counter atomic.Uint32
	packets atomic.Uint64
	errors  atomic.Uint64
	bytes   atomic.Uint64

	errMu      sync.Mutex
	lastErrLog time.Time
	suppressed int
}

type target struct {
	ep    endpoint.Endpoint
	addr  net.Addr
	q15   int32
	state *targetState
}

// TargetStats is a snapshot of one endpoint's send counters
type TargetStats struct {
	ID           uuid.UUID
	Name         string
	Addr         string
	Packets      uint64
	Errors       uint64
	Bytes        uint64
	FrameCounter uint32
}

// Sender drives one capture source out to many endpoints
type Sender struct {
	cfg    Config
	format audio.Format

	updateMu sync.Mutex
	targets  atomic.Pointer[[]*target]

	// denoise lane, touched only by the Run goroutine
	lane     *denoise.Lane
	stereo   []int16
	denoised []byte
}

// New creates a sender. The source format must be sendable as VBAN.
func New(cfg Config) (*Sender, error) {
	if cfg.Source == nil {
		return nil, errors.New("sender: no capture source")
	}
	if cfg.Conn == nil {
		return nil, errors.New("sender: no connection")
	}
	if cfg.Denoiser == nil {
		cfg.Denoiser = denoise.GateFactory(denoise.DefaultGateConfig())
	}
	if cfg.Resolver == nil {
		cfg.Resolver = ResolveUDP
	}
	if cfg.ReadMillis <= 0 {
		cfg.ReadMillis = DefaultReadMillis
	}

	format := cfg.Source.Format()
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("sender: capture format: %w", err)
	}
	if !vban.SupportedRate(format.SampleRate) {
		return nil, fmt.Errorf("sender: capture rate %d: %w", format.SampleRate, vban.ErrUnsupportedRate)
	}
	if format.Channels > vban.MaxChannels {
		return nil, fmt.Errorf("sender: %d channels: %w", format.Channels, vban.ErrChannels)
	}

	s := &Sender{cfg: cfg, format: format}
	empty := []*target{}
	s.targets.Store(&empty)
	return s, nil
}

// Format returns the capture format
func (s *Sender) Format() audio.Format { return s.format }

// Update installs the endpoints to send to. Only enabled sender endpoints
// are used; hosts that fail to resolve are logged and skipped. Frame
// counters carry over for IDs already present.
func (s *Sender) Update(endpoints []endpoint.Endpoint) {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	old := make(map[uuid.UUID]*targetState)
	for _, t := range *s.targets.Load() {
		old[t.ep.ID] = t.state
	}

	next := make([]*target, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep.Role != endpoint.RoleSender || !ep.Enabled {
			continue
		}
		addr, err := s.cfg.Resolver(ep.Host, ep.Port)
		if err != nil {
			log.Printf("Sender: skipping %s: %v", ep, err)
			continue
		}

		state := old[ep.ID]
		if state == nil {
			state = &targetState{}
			log.Printf("Sender: added target %s (%s)", ep, addr)
		}
		next = append(next, &target{
			ep:    ep,
			addr:  addr,
			q15:   gain.Q15(ep.Volume),
			state: state,
		})
	}

	s.targets.Store(&next)
}

// Run reads the capture source and sends until ctx is cancelled or the
// source ends. The source is closed when ctx is cancelled so a blocked
// read returns. A capture failure other than end of stream is returned.
func (s *Sender) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.cfg.Source.Close()
	})
	defer stop()

	frames := s.format.SampleRate * s.cfg.ReadMillis / 1000
	if frames < 1 {
		frames = 1
	}
	buf := make([]byte, frames*s.format.BytesPerFrame())

	log.Printf("Sender starting: %s, %d frames per read", s.format, frames)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := s.cfg.Source.Read(buf)
		if n > 0 && ctx.Err() == nil {
			s.process(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				log.Printf("Sender stopping")
				return nil
			}
			return fmt.Errorf("capture read: %w", err)
		}
	}
}

// process sends one capture block to every target
func (s *Sender) process(data []byte) {
	targets := *s.targets.Load()
	if len(targets) == 0 {
		return
	}

	wantDenoise := false
	for _, t := range targets {
		if t.ep.Denoise {
			wantDenoise = true
			break
		}
	}

	var denoisedFormat audio.Format
	s.denoised = s.denoised[:0]
	if wantDenoise {
		if s.lane == nil {
			s.lane = denoise.NewLane(s.cfg.Denoiser())
		}
		mono := s.lane.Process(data, s.format)
		samples := mono
		channels := 1
		if s.format.Channels > 1 {
			s.stereo = convert.Upmix(s.stereo[:0], mono)
			samples = s.stereo
			channels = 2
		}
		s.denoised = convert.Int16ToBytes(s.denoised, samples)
		denoisedFormat = audio.Canonical(channels)
	} else {
		s.lane = nil
	}

	for _, t := range targets {
		if t.ep.Denoise {
			if len(s.denoised) > 0 {
				s.send(t, s.denoised, denoisedFormat)
			}
			continue
		}
		s.send(t, data, s.format)
	}
}

// send splits block into packets for one target. The block itself is not
// modified; gain is applied to each packet's own payload.
func (s *Sender) send(t *target, block []byte, format audio.Format) {
	bpf := format.BytesPerFrame()
	perChunk := SamplesPerChunk(t.ep.Quality.ReferenceBytes(), bpf)

	for off := 0; off+bpf <= len(block); {
		frames := (len(block) - off) / bpf
		if frames > perChunk {
			frames = perChunk
		}
		payload := block[off : off+frames*bpf]
		off += frames * bpf

		bufp := vban.GetBuffer()
		pkt, err := vban.AppendPacket((*bufp)[:0], vban.Header{
			SampleRate:      format.SampleRate,
			SamplesPerFrame: frames,
			Channels:        format.Channels,
			BitsPerSample:   format.BitDepth,
			Name:            t.ep.Name,
			FrameCounter:    t.state.counter.Load(),
		}, payload)
		if err != nil {
			vban.PutBuffer(bufp)
			t.logError(fmt.Errorf("encode: %w", err))
			return
		}

		gain.ApplyPCMQ15(pkt[vban.HeaderSize:], format.BitDepth, t.q15)

		// The counter advances whether or not the datagram is delivered
		t.state.counter.Add(1)
		if _, err := s.cfg.Conn.WriteTo(pkt, t.addr); err != nil {
			t.state.errors.Add(1)
			t.logError(err)
		} else {
			t.state.packets.Add(1)
			t.state.bytes.Add(uint64(len(pkt)))
			if s.cfg.Debug && t.state.packets.Load()%1000 == 0 {
				log.Printf("[DEBUG] %s: %d packets, counter=%d", t.ep.Name, t.state.packets.Load(), t.state.counter.Load())
			}
		}

		*bufp = pkt
		vban.PutBuffer(bufp)
	}
}

// logError logs at most once per errorLogInterval per endpoint
func (t *target) logError(err error) {
	st := t.state
	st.errMu.Lock()
	defer st.errMu.Unlock()

	if time.Since(st.lastErrLog) < errorLogInterval {
		st.suppressed++
		return
	}
	if st.suppressed > 0 {
		log.Printf("Sender: %s: %v (%d similar errors suppressed)", t.ep.Name, err, st.suppressed)
	} else {
		log.Printf("Sender: %s: %v", t.ep.Name, err)
	}
	st.lastErrLog = time.Now()
	st.suppressed = 0
}

// Stats returns per-target counters in endpoint order
func (s *Sender) Stats() []TargetStats {
	targets := *s.targets.Load()
	stats := make([]TargetStats, 0, len(targets))
	for _, t := range targets {
		stats = append(stats, TargetStats{
			ID:           t.ep.ID,
			Name:         t.ep.Name,
			Addr:         t.addr.String(),
			Packets:      t.state.packets.Load(),
			Errors:       t.state.errors.Load(),
			Bytes:        t.state.bytes.Load(),
			FrameCounter: t.state.counter.Load(),
		})
	}
	return stats
}

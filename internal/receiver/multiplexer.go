// ABOUTME: Receive multiplexer with one UDP listener per configured port
// ABOUTME: Reconciles listeners live and fans decoded frames out to subscribers
package receiver

import (
	"context"
	"fmt"
	"log"
	"net"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/vbancast/vbancast-go/pkg/audio"
	"github.com/vbancast/vbancast-go/pkg/denoise"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
)

// Frame is one matched packet. Payload is only valid for the duration of
// the subscriber call.
type Frame struct {
	Endpoint endpoint.Endpoint
	Payload  []byte
	Format   audio.Format
	Counter  uint32
}

// ListenFunc opens the datagram socket for a port
type ListenFunc func(port int) (net.PacketConn, error)

// Config holds multiplexer configuration
type Config struct {
	Host     string          // bind address, empty for all interfaces
	Listen   ListenFunc      // defaults to UDP on Host:port
	Denoiser denoise.Factory // defaults to the built-in gate
	Debug    bool
}

type subscription struct {
	id int
	fn func(Frame)
}

// Multiplexer owns the listeners for all receiver endpoints
type Multiplexer struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	topology  Topology
	listeners map[int]*listener
	closed    bool

	subsMu  sync.Mutex
	subs    atomic.Pointer[[]subscription]
	nextSub int
}

// ListenerStats is a snapshot of one port's counters
type ListenerStats struct {
	Port      int
	Endpoints []string
	Packets   uint64
	Rejected  uint64
	Matched   uint64
}

// NewMultiplexer creates a multiplexer with no listeners. Listeners stop
// when ctx is cancelled or Close is called.
func NewMultiplexer(ctx context.Context, cfg Config) *Multiplexer {
	if cfg.Denoiser == nil {
		cfg.Denoiser = denoise.GateFactory(denoise.DefaultGateConfig())
	}
	if cfg.Listen == nil {
		host := cfg.Host
		cfg.Listen = func(port int) (net.PacketConn, error) {
			return net.ListenPacket("udp", net.JoinHostPort(host, strconv.Itoa(port)))
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	m := &Multiplexer{
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		topology:  make(Topology),
		listeners: make(map[int]*listener),
	}
	empty := []subscription{}
	m.subs.Store(&empty)
	return m
}

// Apply reconciles listeners with endpoints. Unaffected ports keep their
// sockets; ports whose endpoint set changed get the new list without
// rebinding. A port that fails to bind is logged and left out, so the
// next Apply retries it.
func (m *Multiplexer) Apply(endpoints []endpoint.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	next, actions := Plan(m.topology, endpoints)
	for _, a := range actions {
		switch a.Kind {
		case ActionOpen:
			l, err := m.open(a.Port, a.Endpoints)
			if err != nil {
				log.Printf("Receiver: failed to listen on port %d: %v", a.Port, err)
				delete(next, a.Port)
				continue
			}
			m.listeners[a.Port] = l
			log.Printf("Receiver: listening on port %d for %s", a.Port, names(a.Endpoints))

		case ActionClose:
			if l := m.listeners[a.Port]; l != nil {
				l.stop()
				delete(m.listeners, a.Port)
				log.Printf("Receiver: closed port %d", a.Port)
			}

		case ActionUpdate:
			if l := m.listeners[a.Port]; l != nil {
				l.setEndpoints(a.Endpoints, m.cfg.Denoiser)
				log.Printf("Receiver: port %d now serves %s", a.Port, names(a.Endpoints))
			}
		}
	}
	m.topology = next
}

func (m *Multiplexer) open(port int, eps []endpoint.Endpoint) (*listener, error) {
	conn, err := m.cfg.Listen(port)
	if err != nil {
		return nil, err
	}
	l := newListener(port, conn, m)
	l.setEndpoints(eps, m.cfg.Denoiser)
	l.start(m.ctx)
	return l, nil
}

// Subscribe registers fn for every matched frame and returns a function
// that removes it. fn runs on a listener goroutine and must not block.
func (m *Multiplexer) Subscribe(fn func(Frame)) func() {
	m.subsMu.Lock()
	id := m.nextSub
	m.nextSub++
	cur := *m.subs.Load()
	next := make([]subscription, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, subscription{id: id, fn: fn})
	m.subs.Store(&next)
	m.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			cur := *m.subs.Load()
			next := make([]subscription, 0, len(cur))
			for _, s := range cur {
				if s.id != id {
					next = append(next, s)
				}
			}
			m.subs.Store(&next)
		})
	}
}

func (m *Multiplexer) emit(f Frame) {
	for _, s := range *m.subs.Load() {
		s.fn(f)
	}
}

// Ports returns the ports with an open listener, in order
func (m *Multiplexer) Ports() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ports := make([]int, 0, len(m.listeners))
	for p := range m.listeners {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// Stats returns per-listener counters ordered by port
func (m *Multiplexer) Stats() []ListenerStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]ListenerStats, 0, len(m.listeners))
	for port, l := range m.listeners {
		var epNames []string
		for _, b := range *l.endpoints.Load() {
			epNames = append(epNames, b.ep.Name)
		}
		stats = append(stats, ListenerStats{
			Port:      port,
			Endpoints: epNames,
			Packets:   l.packets.Load(),
			Rejected:  l.rejected.Load(),
			Matched:   l.matched.Load(),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Port < stats[j].Port })
	return stats
}

// Close stops every listener and waits for them to exit
func (m *Multiplexer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.cancel()
	for port, l := range m.listeners {
		l.stop()
		delete(m.listeners, port)
	}
	m.topology = make(Topology)
}

func names(eps []endpoint.Endpoint) string {
	s := ""
	for i, ep := range eps {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%q", ep.Name)
	}
	return s
}

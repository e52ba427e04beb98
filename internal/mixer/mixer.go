// ABOUTME: Mixer summing every active stream into the playback sink
// ABOUTME: Producers feed per-endpoint jitter buffers, a 10 ms tick drains them
package mixer

import (
	"context"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vbancast/vbancast-go/pkg/audio"
	"github.com/vbancast/vbancast-go/pkg/audio/convert"
	"github.com/vbancast/vbancast-go/pkg/audio/gain"
	"github.com/vbancast/vbancast-go/pkg/audio/output"
	"github.com/vbancast/vbancast-go/pkg/audio/resample"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
)

// TickInterval is the mix period, one chunk per stream per tick
const TickInterval = 10 * time.Millisecond

const chunkValues = ChunkSamples * ChunkChannels

type stream struct {
	id  uuid.UUID
	buf *StreamBuffer

	name    atomic.Pointer[string]
	volume  atomic.Int32
	quality atomic.Int32

	// producer state, guarded by feedMu
	feedMu    sync.Mutex
	resampler *resample.Resampler
	converted []int16
	pending   []int16
	chunk     []byte
}

func newStream(ep endpoint.Endpoint) *stream {
	s := &stream{
		id:        ep.ID,
		buf:       NewStreamBuffer(Capacity(ep.Quality)),
		resampler: resample.New(audio.CanonicalRate, ChunkChannels),
	}
	s.setEndpoint(ep)
	return s
}

func (s *stream) setEndpoint(ep endpoint.Endpoint) {
	name := ep.Name
	s.name.Store(&name)
	s.volume.Store(gain.Q15(ep.Volume))
	if endpoint.Quality(s.quality.Swap(int32(ep.Quality))) != ep.Quality {
		s.buf.SetCapacity(Capacity(ep.Quality))
	}
}

// feed converts payload to canonical stereo, applies the endpoint volume
// and enqueues every complete chunk
func (s *stream) feed(payload []byte, format audio.Format) {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()

	s.converted = convert.ToInt16(s.converted[:0], payload, format, ChunkChannels)
	s.pending = s.resampler.Resample(s.pending, s.converted, format.SampleRate)

	q := s.volume.Load()
	off := 0
	for len(s.pending)-off >= chunkValues {
		samples := s.pending[off : off+chunkValues]
		gain.Apply16(samples, q)
		s.chunk = convert.Int16ToBytes(s.chunk[:0], samples)
		s.buf.Enqueue(s.chunk)
		off += chunkValues
	}
	if off > 0 {
		n := copy(s.pending, s.pending[off:])
		s.pending = s.pending[:n]
	}
}

func (s *stream) reset() {
	s.feedMu.Lock()
	s.pending = s.pending[:0]
	s.resampler.Reset()
	s.feedMu.Unlock()
	s.buf.Clear()
}

// StreamStats is a snapshot of one stream
type StreamStats struct {
	ID         uuid.UUID
	Name       string
	BufferedMs int
	Capacity   int
	Dropped    uint64
	Underruns  uint64
}

// Mixer owns the stream buffers and the mix loop. Feed may be called from
// any goroutine; Run drives the sink.
type Mixer struct {
	sink  output.Sink
	debug bool

	mu      sync.Mutex
	streams map[uuid.UUID]*stream
	active  atomic.Pointer[[]*stream]

	// allowed is the receiver set from the last Sync; nil admits any
	// endpoint until the first Sync
	allowed map[uuid.UUID]struct{}

	gain atomic.Int32

	ticks       atomic.Uint64
	writeErrors atomic.Uint64

	// mix loop scratch
	mixed   []int16
	chunk   []byte
	samples []int16
	out     []byte
}

// New creates a mixer writing to sink at unity gain. The sink must be
// started with 48kHz stereo before Run.
func New(sink output.Sink, debug bool) *Mixer {
	m := &Mixer{
		sink:    sink,
		debug:   debug,
		streams: make(map[uuid.UUID]*stream),
		mixed:   make([]int16, chunkValues),
		chunk:   make([]byte, ChunkBytes),
		samples: make([]int16, 0, chunkValues),
		out:     make([]byte, 0, ChunkBytes),
	}
	m.gain.Store(gain.Unity)
	empty := []*stream{}
	m.active.Store(&empty)
	return m
}

// Feed queues payload for ep, creating the stream on first use. Frames
// for endpoints left out of the last Sync are dropped.
func (m *Mixer) Feed(ep endpoint.Endpoint, payload []byte, format audio.Format) {
	if len(payload) == 0 || format.Validate() != nil {
		return
	}
	if s := m.stream(ep); s != nil {
		s.feed(payload, format)
	}
}

func (m *Mixer) stream(ep endpoint.Endpoint) *stream {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.streams[ep.ID]
	if ok {
		s.setEndpoint(ep)
		return s
	}
	if m.allowed != nil {
		if _, ok := m.allowed[ep.ID]; !ok {
			if m.debug {
				log.Printf("[DEBUG] Mixer: dropping frame for removed endpoint %q", ep.Name)
			}
			return nil
		}
	}

	s = newStream(ep)
	m.streams[ep.ID] = s
	m.publish()
	log.Printf("Mixer: new stream %q (%d chunk buffer)", ep.Name, s.buf.Capacity())
	return s
}

// publish must be called with mu held
func (m *Mixer) publish() {
	next := make([]*stream, 0, len(m.streams))
	for _, s := range m.streams {
		next = append(next, s)
	}
	sort.Slice(next, func(i, j int) bool { return next[i].id.String() < next[j].id.String() })
	m.active.Store(&next)
}

// Sync removes streams for endpoints that are gone or disabled and
// updates capacity and volume for the rest
func (m *Mixer) Sync(endpoints []endpoint.Endpoint) {
	keep := make(map[uuid.UUID]endpoint.Endpoint)
	allowed := make(map[uuid.UUID]struct{})
	for _, ep := range endpoints {
		if ep.Role == endpoint.RoleReceiver && ep.Enabled {
			keep[ep.ID] = ep
			allowed[ep.ID] = struct{}{}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.allowed = allowed

	changed := false
	for id, s := range m.streams {
		ep, ok := keep[id]
		if !ok {
			s.buf.Clear()
			delete(m.streams, id)
			changed = true
			continue
		}
		s.setEndpoint(ep)
	}
	if changed {
		m.publish()
	}
}

// SetCapacity changes the jitter depth of an existing stream
func (m *Mixer) SetCapacity(id uuid.UUID, q endpoint.Quality) {
	m.mu.Lock()
	s := m.streams[id]
	m.mu.Unlock()

	if s != nil {
		s.quality.Store(int32(q))
		s.buf.SetCapacity(Capacity(q))
	}
}

// Remove drops the stream for id and its buffered audio. Once a Sync has
// run, later frames for id are dropped until a Sync lists it again.
func (m *Mixer) Remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.allowed != nil {
		delete(m.allowed, id)
	}
	if s, ok := m.streams[id]; ok {
		s.buf.Clear()
		delete(m.streams, id)
		m.publish()
	}
}

// Reset drops every stream
func (m *Mixer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.streams {
		s.reset()
		delete(m.streams, id)
	}
	m.allowed = nil
	m.publish()
}

// SetGain sets the master gain applied after mixing
func (m *Mixer) SetGain(g float64) {
	m.gain.Store(gain.Q15(g))
}

// Gain returns the master gain
func (m *Mixer) Gain() float64 {
	return float64(m.gain.Load()) / float64(gain.Unity)
}

// Run mixes one chunk every TickInterval until ctx is cancelled
func (m *Mixer) Run(ctx context.Context) error {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	var lastErrLog time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			out := m.mix()
			if err := m.sink.Write(out); err != nil {
				m.writeErrors.Add(1)
				if time.Since(lastErrLog) > time.Second {
					log.Printf("Mixer: output write failed: %v", err)
					lastErrLog = time.Now()
				}
			}
			if m.debug && m.ticks.Load()%500 == 0 {
				log.Printf("[DEBUG] Mixer: tick %d, %d streams", m.ticks.Load(), len(*m.active.Load()))
			}
		}
	}
}

// mix produces one output chunk. It is only called from the Run goroutine.
func (m *Mixer) mix() []byte {
	m.ticks.Add(1)
	clear(m.mixed)

	for _, s := range *m.active.Load() {
		if !s.buf.Read(m.chunk) {
			continue
		}
		m.samples = convert.BytesToInt16(m.samples[:0], m.chunk)
		for i, v := range m.samples {
			sum := int32(m.mixed[i]) + int32(v)
			if sum > 32767 {
				sum = 32767
			} else if sum < -32768 {
				sum = -32768
			}
			m.mixed[i] = int16(sum)
		}
	}

	gain.Apply16(m.mixed, m.gain.Load())
	m.out = convert.Int16ToBytes(m.out[:0], m.mixed)
	return m.out
}

// Stats returns one entry per active stream ordered by name
func (m *Mixer) Stats() []StreamStats {
	streams := *m.active.Load()
	stats := make([]StreamStats, 0, len(streams))
	for _, s := range streams {
		b := s.buf.Stats()
		stats = append(stats, StreamStats{
			ID:         s.id,
			Name:       *s.name.Load(),
			BufferedMs: b.Chunks * int(TickInterval/time.Millisecond),
			Capacity:   b.Capacity,
			Dropped:    b.Dropped,
			Underruns:  b.Underruns,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// WriteErrors returns the number of failed sink writes
func (m *Mixer) WriteErrors() uint64 {
	return m.writeErrors.Load()
}

// ABOUTME: Per-port UDP listener loop
// ABOUTME: Decodes datagrams, matches stream names and applies inbound denoise
package receiver

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vbancast/vbancast-go/pkg/audio"
	"github.com/vbancast/vbancast-go/pkg/audio/convert"
	"github.com/vbancast/vbancast-go/pkg/denoise"
	"github.com/vbancast/vbancast-go/pkg/endpoint"
	"github.com/vbancast/vbancast-go/pkg/vban"
)

const (
	// ReadTimeout bounds each socket read so cancellation is observed
	ReadTimeout = 250 * time.Millisecond

	maxDatagram = 65536
)

type boundEndpoint struct {
	ep   endpoint.Endpoint
	name string
	lane *denoise.Lane // nil unless the endpoint asks for denoise
}

type listener struct {
	port      int
	conn      net.PacketConn
	mux       *Multiplexer
	endpoints atomic.Pointer[[]boundEndpoint]

	packets  atomic.Uint64
	rejected atomic.Uint64
	matched  atomic.Uint64

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	scratch []byte
}

func newListener(port int, conn net.PacketConn, m *Multiplexer) *listener {
	l := &listener{
		port: port,
		conn: conn,
		mux:  m,
		done: make(chan struct{}),
	}
	empty := []boundEndpoint{}
	l.endpoints.Store(&empty)
	return l
}

// setEndpoints swaps the endpoint list. Denoise lanes are kept for IDs
// that still want denoise so their buffered audio is not lost.
func (l *listener) setEndpoints(eps []endpoint.Endpoint, factory denoise.Factory) {
	lanes := make(map[uuid.UUID]*denoise.Lane)
	for _, b := range *l.endpoints.Load() {
		if b.lane != nil {
			lanes[b.ep.ID] = b.lane
		}
	}

	next := make([]boundEndpoint, 0, len(eps))
	for _, ep := range eps {
		b := boundEndpoint{ep: ep, name: vban.NormalizeName(ep.Name)}
		if ep.Denoise {
			b.lane = lanes[ep.ID]
			if b.lane == nil {
				b.lane = denoise.NewLane(factory())
			}
		}
		next = append(next, b)
	}
	l.endpoints.Store(&next)
}

func (l *listener) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	go l.run(ctx)
}

func (l *listener) stop() {
	l.stopOnce.Do(func() {
		if l.cancel != nil {
			l.cancel()
		}
		l.conn.Close()
	})
	<-l.done
}

func (l *listener) run(ctx context.Context) {
	defer close(l.done)
	defer l.conn.Close()

	buf := make([]byte, maxDatagram)
	var lastErrLog time.Time

	for {
		if ctx.Err() != nil {
			return
		}

		if err := l.conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// Without a deadline the read could outlive cancellation
			if time.Since(lastErrLog) > time.Second {
				log.Printf("Receiver: port %d deadline error: %v", l.port, err)
				lastErrLog = time.Now()
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(ReadTimeout):
			}
			continue
		}
		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			if time.Since(lastErrLog) > time.Second {
				log.Printf("Receiver: port %d read error: %v", l.port, err)
				lastErrLog = time.Now()
			}
			continue
		}

		l.handle(buf[:n])
	}
}

func (l *listener) handle(data []byte) {
	pkt, ok := vban.Decode(data)
	if !ok {
		l.rejected.Add(1)
		return
	}
	l.packets.Add(1)

	format := pkt.Format()
	payload := pkt.Payload
	if want := pkt.SamplesPerFrame * format.BytesPerFrame(); len(payload) > want {
		payload = payload[:want]
	}

	for _, b := range *l.endpoints.Load() {
		if b.name != pkt.Name {
			continue
		}
		l.matched.Add(1)

		if b.lane != nil && pkt.BitsPerSample == 16 {
			mono := b.lane.Process(payload, format)
			if len(mono) == 0 {
				continue
			}
			l.scratch = convert.Int16ToBytes(l.scratch[:0], mono)
			l.mux.emit(Frame{Endpoint: b.ep, Payload: l.scratch, Format: audio.Canonical(1), Counter: pkt.FrameCounter})
			continue
		}

		if l.mux.cfg.Debug && l.matched.Load()%1000 == 0 {
			log.Printf("[DEBUG] port %d: %q %s counter=%d", l.port, b.ep.Name, format, pkt.FrameCounter)
		}
		l.mux.emit(Frame{Endpoint: b.ep, Payload: payload, Format: format, Counter: pkt.FrameCounter})
	}
}

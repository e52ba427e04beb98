// ABOUTME: Bounded per-stream jitter buffer of fixed-size PCM chunks
// ABOUTME: Drops the oldest chunks on overflow and reads silence on underrun
package mixer

import (
	"sync"

	"github.com/vbancast/vbancast-go/pkg/endpoint"
)

const (
	// ChunkSamples is the number of frames in one mixer chunk (10 ms at 48kHz)
	ChunkSamples = 480
	// ChunkChannels is the channel count of every chunk
	ChunkChannels = 2
	// ChunkBytes is the size of one 16-bit chunk
	ChunkBytes = ChunkSamples * ChunkChannels * 2

	// MaxCapacityChunks bounds every stream buffer
	MaxCapacityChunks = 64
)

// Capacity returns the jitter depth in chunks for a quality tier
func Capacity(q endpoint.Quality) int {
	n := (q.ReferenceSamples() + ChunkSamples - 1) / ChunkSamples
	if n < 1 {
		n = 1
	}
	if n > MaxCapacityChunks {
		n = MaxCapacityChunks
	}
	return n
}

// StreamBuffer is a FIFO of chunks for one stream
type StreamBuffer struct {
	mu       sync.Mutex
	chunks   [][]byte
	spare    [][]byte
	bytes    int
	capacity int

	enqueued  uint64
	dropped   uint64
	underruns uint64
}

// NewStreamBuffer creates a buffer holding at most capacity chunks
func NewStreamBuffer(capacity int) *StreamBuffer {
	return &StreamBuffer{capacity: clampCapacity(capacity)}
}

func clampCapacity(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxCapacityChunks {
		return MaxCapacityChunks
	}
	return n
}

// Enqueue copies chunk to the tail and drops whole chunks from the head
// until the buffer is within capacity. Chunks longer than ChunkBytes are
// truncated.
func (b *StreamBuffer) Enqueue(chunk []byte) {
	if len(chunk) > ChunkBytes {
		chunk = chunk[:ChunkBytes]
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var c []byte
	if n := len(b.spare); n > 0 {
		c = b.spare[n-1][:0]
		b.spare = b.spare[:n-1]
	} else {
		c = make([]byte, 0, ChunkBytes)
	}
	c = append(c, chunk...)

	b.chunks = append(b.chunks, c)
	b.bytes += len(c)
	b.enqueued++
	b.trim()
}

func (b *StreamBuffer) trim() {
	limit := b.capacity * ChunkBytes
	for b.bytes > limit && len(b.chunks) > 0 {
		b.release(b.popHead())
		b.dropped++
	}
}

func (b *StreamBuffer) popHead() []byte {
	c := b.chunks[0]
	b.chunks[0] = nil
	b.chunks = b.chunks[1:]
	b.bytes -= len(c)
	return c
}

func (b *StreamBuffer) release(c []byte) {
	if len(b.spare) < MaxCapacityChunks {
		b.spare = append(b.spare, c)
	}
}

// Read copies the oldest chunk into dst and zero-fills the rest of dst.
// It returns false and fills dst with silence when the buffer is empty.
func (b *StreamBuffer) Read(dst []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.chunks) == 0 {
		clear(dst)
		b.underruns++
		return false
	}

	c := b.popHead()
	n := copy(dst, c)
	clear(dst[n:])
	b.release(c)
	return true
}

// SetCapacity changes the bound and drops excess chunks immediately
func (b *StreamBuffer) SetCapacity(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.capacity = clampCapacity(n)
	b.trim()
}

// Capacity returns the bound in chunks
func (b *StreamBuffer) Capacity() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// Len returns the number of queued chunks
func (b *StreamBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Bytes returns the number of queued bytes
func (b *StreamBuffer) Bytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}

// Clear drops every queued chunk without counting them as drops
func (b *StreamBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.chunks) > 0 {
		b.release(b.popHead())
	}
}

// BufferStats is a snapshot of a buffer's counters
type BufferStats struct {
	Chunks    int
	Capacity  int
	Enqueued  uint64
	Dropped   uint64
	Underruns uint64
}

// Stats returns the buffer's counters
func (b *StreamBuffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BufferStats{
		Chunks:    len(b.chunks),
		Capacity:  b.capacity,
		Enqueued:  b.enqueued,
		Dropped:   b.dropped,
		Underruns: b.underruns,
	}
}

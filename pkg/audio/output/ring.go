// ABOUTME: Ring buffer between Write and callback-driven backends
// ABOUTME: Thread-safe circular buffer of 16-bit samples with silence on underrun
package output

import "sync"

// RingBuffer provides thread-safe circular buffer for audio samples
type RingBuffer struct {
	buffer   []int16
	readPos  int
	writePos int
	size     int
	count    int // Number of samples currently in buffer
	mu       sync.Mutex
}

// NewRingBuffer creates a ring buffer with given capacity (in samples)
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		buffer: make([]int16, capacity),
		size:   capacity,
	}
}

// Write adds samples to the ring buffer and returns how many fit
func (rb *RingBuffer) Write(samples []int16) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for i := 0; i < len(samples) && rb.count < rb.size; i++ {
		rb.buffer[rb.writePos] = samples[i]
		rb.writePos = (rb.writePos + 1) % rb.size
		rb.count++
		written++
	}
	return written
}

// WriteBytes adds little-endian 16-bit PCM to the ring buffer and returns
// how many samples fit
func (rb *RingBuffer) WriteBytes(pcm []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for i := 0; i+1 < len(pcm) && rb.count < rb.size; i += 2 {
		rb.buffer[rb.writePos] = int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8)
		rb.writePos = (rb.writePos + 1) % rb.size
		rb.count++
		written++
	}
	return written
}

// Read retrieves samples from the ring buffer, zero-filling on underrun
func (rb *RingBuffer) Read(samples []int16) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for i := 0; i < len(samples) && rb.count > 0; i++ {
		samples[i] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % rb.size
		rb.count--
		read++
	}

	for i := read; i < len(samples); i++ {
		samples[i] = 0
	}

	return read
}

// Available returns the number of samples available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of free slots in the buffer
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size - rb.count
}

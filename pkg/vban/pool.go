// ABOUTME: Pooled packet scratch buffers
// ABOUTME: Avoids a fresh allocation per packet on the send path
package vban

import "sync"

// defaultBufferSize fits a full 256-sample stereo 32-bit packet
const defaultBufferSize = HeaderSize + MaxSamplesPerFrame*2*4

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, defaultBufferSize)
		return &b
	},
}

// GetBuffer returns an empty scratch buffer from the pool
func GetBuffer() *[]byte {
	b := bufferPool.Get().(*[]byte)
	*b = (*b)[:0]
	return b
}

// PutBuffer returns a scratch buffer to the pool
func PutBuffer(b *[]byte) {
	if b == nil {
		return
	}
	// Don't keep oversized buffers from wide multichannel streams around
	if cap(*b) > 4*defaultBufferSize {
		return
	}
	bufferPool.Put(b)
}

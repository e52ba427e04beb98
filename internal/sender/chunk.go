// ABOUTME: Packet sizing for the sender
// ABOUTME: Derives samples per packet from a quality tier byte budget
package sender

import "github.com/vbancast/vbancast-go/pkg/vban"

// chunkAlign keeps packet sample counts a multiple of the unrolled gain width
const chunkAlign = 32

// SamplesPerChunk returns samples per channel for one packet:
// refBytes/bytesPerFrame clamped to [1, 256], rounded up to a multiple of
// 32 and never above 256.
func SamplesPerChunk(refBytes, bytesPerFrame int) int {
	if bytesPerFrame < 1 {
		bytesPerFrame = 1
	}
	n := refBytes / bytesPerFrame
	if n < 1 {
		n = 1
	}
	if n > vban.MaxSamplesPerFrame {
		n = vban.MaxSamplesPerFrame
	}
	n = (n + chunkAlign - 1) / chunkAlign * chunkAlign
	if n > vban.MaxSamplesPerFrame {
		n = vban.MaxSamplesPerFrame
	}
	return n
}

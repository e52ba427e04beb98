// ABOUTME: Bit depth and channel count conversion
// ABOUTME: Down-mixes by averaging the first two channels, up-mixes by duplication
package convert

import (
	"encoding/binary"

	"github.com/vbancast/vbancast-go/pkg/audio"
)

// ToInt16 converts interleaved PCM in format src to 16-bit samples with
// outChannels channels (clamped to 1 or 2) and appends them to dst.
// Trailing bytes that do not form a whole frame are ignored.
func ToInt16(dst []int16, data []byte, src audio.Format, outChannels int) []int16 {
	if !audio.ValidBitDepth(src.BitDepth) || src.Channels < 1 {
		return dst
	}
	if outChannels < 1 {
		outChannels = 1
	} else if outChannels > 2 {
		outChannels = 2
	}

	bps := src.BytesPerSample()
	bpf := src.BytesPerFrame()
	frames := src.Frames(len(data))

	for i := 0; i < frames; i++ {
		frame := data[i*bpf : (i+1)*bpf]
		left := Sample16(frame, src.BitDepth)

		if src.Channels == 1 {
			if outChannels == 1 {
				dst = append(dst, left)
			} else {
				dst = append(dst, left, left)
			}
			continue
		}

		right := Sample16(frame[bps:], src.BitDepth)
		if outChannels == 1 {
			dst = append(dst, int16((int32(left)+int32(right))>>1))
		} else {
			dst = append(dst, left, right)
		}
	}
	return dst
}

// Sample16 reads one little-endian sample of the given width from b and
// narrows or widens it to 16 bits
func Sample16(b []byte, bitDepth int) int16 {
	switch bitDepth {
	case 8:
		return int16(int8(b[0])) << 8
	case 16:
		return int16(binary.LittleEndian.Uint16(b))
	case 24:
		return int16(audio.SampleFrom24Bit([3]byte{b[0], b[1], b[2]}) >> 8)
	case 32:
		return int16(int32(binary.LittleEndian.Uint32(b)) >> 16)
	}
	return 0
}

// Upmix duplicates each mono sample into a stereo pair
func Upmix(dst, mono []int16) []int16 {
	for _, s := range mono {
		dst = append(dst, s, s)
	}
	return dst
}

// ABOUTME: Audio type definitions
// ABOUTME: Defines the PCM wave format and sample width helpers
package audio

import "fmt"

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23

	// CanonicalRate is the internal mixing and denoise sample rate
	CanonicalRate = 48000
	// CanonicalBitDepth is the internal sample width
	CanonicalBitDepth = 16
)

// Format describes a PCM stream format (WaveFormat). It is fixed for the
// lifetime of a stream segment.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Canonical returns the 48kHz/16-bit format with the given channel count
func Canonical(channels int) Format {
	return Format{SampleRate: CanonicalRate, Channels: channels, BitDepth: CanonicalBitDepth}
}

// BytesPerSample returns the size of one sample of one channel
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// BytesPerFrame returns the size of one sample across all channels
func (f Format) BytesPerFrame() int {
	return f.BytesPerSample() * f.Channels
}

// Frames returns the number of whole frames contained in n bytes
func (f Format) Frames(n int) int {
	bpf := f.BytesPerFrame()
	if bpf == 0 {
		return 0
	}
	return n / bpf
}

// Validate checks bit depth, channel count and sample rate
func (f Format) Validate() error {
	if !ValidBitDepth(f.BitDepth) {
		return fmt.Errorf("unsupported bit depth: %d (supported: 8, 16, 24, 32)", f.BitDepth)
	}
	if f.Channels < 1 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	return nil
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// ValidBitDepth reports whether bits is a supported signed PCM width
func ValidBitDepth(bits int) bool {
	switch bits {
	case 8, 16, 24, 32:
		return true
	}
	return false
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

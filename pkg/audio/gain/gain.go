// ABOUTME: Q15 gain stage with width-specialized variants
// ABOUTME: 16-bit path is unrolled four lanes wide with a scalar tail
package gain

import (
	"encoding/binary"
	"math"

	"github.com/vbancast/vbancast-go/pkg/audio"
)

// Unity is the Q15 representation of a gain of 1.0
const Unity int32 = 1 << 15

const (
	shift     = 15
	roundBias = 1 << (shift - 1)
)

// Q15 converts a floating point gain to Q15, saturating to the int32 range
func Q15(g float64) int32 {
	v := math.Round(g * float64(Unity))
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func bias(q int32) int64 {
	if q < 0 {
		return -roundBias
	}
	return roundBias
}

func scale(s int64, q, b int64) int64 {
	return (s*q + b) >> shift
}

func clamp(v, lo, hi int64) int64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// Apply8 scales signed 8-bit samples in place
func Apply8(samples []byte, q int32) {
	if q == Unity {
		return
	}
	qq, b := int64(q), bias(q)
	for i, s := range samples {
		samples[i] = byte(int8(clamp(scale(int64(int8(s)), qq, b), math.MinInt8, math.MaxInt8)))
	}
}

// Apply16 scales 16-bit samples in place
func Apply16(samples []int16, q int32) {
	if q == Unity {
		return
	}
	qq, b := int64(q), bias(q)

	n := len(samples) &^ 3
	for i := 0; i < n; i += 4 {
		v := samples[i : i+4 : i+4]
		v0 := clamp(scale(int64(v[0]), qq, b), math.MinInt16, math.MaxInt16)
		v1 := clamp(scale(int64(v[1]), qq, b), math.MinInt16, math.MaxInt16)
		v2 := clamp(scale(int64(v[2]), qq, b), math.MinInt16, math.MaxInt16)
		v3 := clamp(scale(int64(v[3]), qq, b), math.MinInt16, math.MaxInt16)
		v[0], v[1], v[2], v[3] = int16(v0), int16(v1), int16(v2), int16(v3)
	}
	apply16Scalar(samples[n:], q)
}

func apply16Scalar(samples []int16, q int32) {
	qq, b := int64(q), bias(q)
	for i, s := range samples {
		samples[i] = int16(clamp(scale(int64(s), qq, b), math.MinInt16, math.MaxInt16))
	}
}

// Apply24 scales packed little-endian 24-bit samples in place
func Apply24(data []byte, q int32) {
	if q == Unity {
		return
	}
	qq, b := int64(q), bias(q)
	n := len(data) / 3
	for i := 0; i < n; i++ {
		p := data[i*3 : i*3+3 : i*3+3]
		s := audio.SampleFrom24Bit([3]byte{p[0], p[1], p[2]})
		out := audio.SampleTo24Bit(int32(clamp(scale(int64(s), qq, b), audio.Min24Bit, audio.Max24Bit)))
		p[0], p[1], p[2] = out[0], out[1], out[2]
	}
}

// Apply32 scales 32-bit samples in place
func Apply32(samples []int32, q int32) {
	if q == Unity {
		return
	}
	qq, b := int64(q), bias(q)
	for i, s := range samples {
		samples[i] = int32(clamp(scale(int64(s), qq, b), math.MinInt32, math.MaxInt32))
	}
}

// ApplyPCM scales little-endian PCM bytes of the given width in place
func ApplyPCM(data []byte, bitDepth int, g float64) {
	ApplyPCMQ15(data, bitDepth, Q15(g))
}

// ApplyPCMQ15 is ApplyPCM with a precomputed Q15 gain
func ApplyPCMQ15(data []byte, bitDepth int, q int32) {
	if q == Unity {
		return
	}
	qq, b := int64(q), bias(q)

	switch bitDepth {
	case 8:
		Apply8(data, q)
	case 16:
		for i := 0; i+1 < len(data); i += 2 {
			s := int16(binary.LittleEndian.Uint16(data[i:]))
			binary.LittleEndian.PutUint16(data[i:], uint16(int16(clamp(scale(int64(s), qq, b), math.MinInt16, math.MaxInt16))))
		}
	case 24:
		Apply24(data, q)
	case 32:
		for i := 0; i+3 < len(data); i += 4 {
			s := int32(binary.LittleEndian.Uint32(data[i:]))
			binary.LittleEndian.PutUint32(data[i:], uint32(int32(clamp(scale(int64(s), qq, b), math.MinInt32, math.MaxInt32))))
		}
	}
}

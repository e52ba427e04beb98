// ABOUTME: Tests for the Q15 gain stage
// ABOUTME: Tests exact vectors, unity no-op per width and unrolled/scalar agreement
package gain

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
	"testing"
)

// reference is the scalar formula written out independently
func reference(s int64, g float64, lo, hi int64) int64 {
	q := int64(math.Round(g * 32768))
	b := int64(16384)
	if q < 0 {
		b = -16384
	}
	v := (s*q + b) >> 15
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

func TestQ15(t *testing.T) {
	tests := []struct {
		gain     float64
		expected int32
	}{
		{1.0, 32768},
		{0.5, 16384},
		{0, 0},
		{-1.0, -32768},
		{2.0, 65536},
		{0.1, 3277},
		{1e12, math.MaxInt32},
		{-1e12, math.MinInt32},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := Q15(tt.gain); got != tt.expected {
			t.Errorf("Q15(%v): expected %d, got %d", tt.gain, tt.expected, got)
		}
	}
}

func TestApply16Vectors(t *testing.T) {
	tests := []struct {
		sample   int16
		gain     float64
		expected int16
	}{
		{1000, 0.5, 500},
		{1001, 0.5, 501},
		{-1000, 0.5, -500},
		{1000, -0.5, -501},
		{12345, 0, 0},
		{32767, 1.0, 32767},
		{-32768, 1.0, -32768},
		{32767, 2.0, 32767},
		{-32768, 2.0, -32768},
		{20000, 1.5, 30000},
		{32767, 1.5, 32767},
		{32767, 0.25, 8192},
		{-32768, 0.25, -8192},
		{32767, -1.0, -32768},
		{-32768, -1.0, 32767},
	}

	for _, tt := range tests {
		samples := []int16{tt.sample}
		Apply16(samples, Q15(tt.gain))
		if samples[0] != tt.expected {
			t.Errorf("Apply16(%d, %v): expected %d, got %d", tt.sample, tt.gain, tt.expected, samples[0])
		}
		if ref := reference(int64(tt.sample), tt.gain, math.MinInt16, math.MaxInt16); int64(tt.expected) != ref {
			t.Errorf("vector (%d, %v) disagrees with formula: %d", tt.sample, tt.gain, ref)
		}
	}
}

func TestUnityIsNoOp(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	raw := make([]byte, 4096)
	rng.Read(raw)

	t.Run("8-bit", func(t *testing.T) {
		data := append([]byte(nil), raw...)
		Apply8(data, Unity)
		if !bytes.Equal(data, raw) {
			t.Error("8-bit samples changed at unity gain")
		}
	})

	t.Run("16-bit", func(t *testing.T) {
		samples := make([]int16, len(raw)/2)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		orig := append([]int16(nil), samples...)
		Apply16(samples, Unity)
		for i := range samples {
			if samples[i] != orig[i] {
				t.Fatalf("sample %d changed: %d -> %d", i, orig[i], samples[i])
			}
		}
	})

	t.Run("24-bit", func(t *testing.T) {
		data := append([]byte(nil), raw[:len(raw)/3*3]...)
		Apply24(data, Unity)
		if !bytes.Equal(data, raw[:len(data)]) {
			t.Error("24-bit samples changed at unity gain")
		}
	})

	t.Run("32-bit", func(t *testing.T) {
		samples := make([]int32, len(raw)/4)
		for i := range samples {
			samples[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		orig := append([]int32(nil), samples...)
		Apply32(samples, Unity)
		for i := range samples {
			if samples[i] != orig[i] {
				t.Fatalf("sample %d changed", i)
			}
		}
	})

	for _, bits := range []int{8, 16, 24, 32} {
		data := append([]byte(nil), raw...)
		ApplyPCM(data, bits, 1.0)
		if !bytes.Equal(data, raw) {
			t.Errorf("ApplyPCM %d-bit changed samples at unity gain", bits)
		}
	}
}

func TestUnityFormulaIsIdentity(t *testing.T) {
	// the early return must not hide a formula that disagrees at unity
	samples := []int16{-32768, -1, 0, 1, 32767, 123, -4567}
	orig := append([]int16(nil), samples...)
	apply16Scalar(samples, Unity)
	for i := range samples {
		if samples[i] != orig[i] {
			t.Errorf("sample %d: %d -> %d", i, orig[i], samples[i])
		}
	}
}

func TestApply16UnrolledMatchesScalar(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	gains := []float64{0, 0.001, 0.3, 0.5, 0.999, 1.01, 1.5, 3.7, -0.5, -1, -2.25}

	for _, g := range gains {
		for _, n := range []int{0, 1, 3, 4, 5, 7, 8, 255, 1024} {
			samples := make([]int16, n)
			for i := range samples {
				samples[i] = int16(rng.Intn(65536) - 32768)
			}
			if n > 1 {
				samples[0], samples[n-1] = math.MaxInt16, math.MinInt16
			}

			fast := append([]int16(nil), samples...)
			slow := append([]int16(nil), samples...)
			q := Q15(g)
			Apply16(fast, q)
			apply16Scalar(slow, q)

			for i := range fast {
				if fast[i] != slow[i] {
					t.Fatalf("gain %v len %d sample %d: unrolled %d, scalar %d", g, n, i, fast[i], slow[i])
				}
				if want := reference(int64(samples[i]), g, math.MinInt16, math.MaxInt16); int64(fast[i]) != want {
					t.Fatalf("gain %v sample %d: expected %d, got %d", g, samples[i], want, fast[i])
				}
			}
		}
	}
}

func TestApply8(t *testing.T) {
	data := []byte{100, 0x9C, 0x7F, 0x80, 10}
	Apply8(data, Q15(2.0))
	expected := []int8{127, -128, 127, -128, 20}
	for i, e := range expected {
		if int8(data[i]) != e {
			t.Errorf("sample %d: expected %d, got %d", i, e, int8(data[i]))
		}
	}
}

func TestApply24(t *testing.T) {
	data := []byte{
		0xFF, 0xFF, 0x7F, // max
		0x00, 0x00, 0x80, // min
		0x00, 0x10, 0x00, // 4096
	}
	Apply24(data, Q15(2.0))
	expected := []byte{
		0xFF, 0xFF, 0x7F,
		0x00, 0x00, 0x80,
		0x00, 0x20, 0x00,
	}
	if !bytes.Equal(data, expected) {
		t.Errorf("expected %x, got %x", expected, data)
	}
}

func TestApply32(t *testing.T) {
	samples := []int32{math.MaxInt32, math.MinInt32, 1 << 20, -(1 << 20)}
	Apply32(samples, Q15(0.5))
	expected := []int32{1 << 30, -(1 << 30), 1 << 19, -(1 << 19)}
	for i := range expected {
		if samples[i] != expected[i] {
			t.Errorf("sample %d: expected %d, got %d", i, expected[i], samples[i])
		}
	}

	sat := []int32{math.MaxInt32, math.MinInt32}
	Apply32(sat, Q15(4))
	if sat[0] != math.MaxInt32 || sat[1] != math.MinInt32 {
		t.Errorf("expected saturation, got %v", sat)
	}
}

func TestApplyPCMMatchesTyped(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	raw := make([]byte, 960)
	rng.Read(raw)
	g := 0.73

	data := append([]byte(nil), raw...)
	ApplyPCM(data, 16, g)

	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	Apply16(samples, Q15(g))
	for i := range samples {
		if got := int16(binary.LittleEndian.Uint16(data[i*2:])); got != samples[i] {
			t.Fatalf("16-bit sample %d: bytes %d, typed %d", i, got, samples[i])
		}
	}

	data = append(data[:0], raw...)
	ApplyPCM(data, 32, g)
	words := make([]int32, len(raw)/4)
	for i := range words {
		words[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	Apply32(words, Q15(g))
	for i := range words {
		if got := int32(binary.LittleEndian.Uint32(data[i*4:])); got != words[i] {
			t.Fatalf("32-bit sample %d: bytes %d, typed %d", i, got, words[i])
		}
	}
}

func BenchmarkApply16(b *testing.B) {
	samples := make([]int16, 960)
	q := Q15(0.8)
	for i := 0; i < b.N; i++ {
		Apply16(samples, q)
	}
}

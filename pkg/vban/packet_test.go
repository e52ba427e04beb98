// ABOUTME: Tests for VBAN packet codec
// ABOUTME: Tests header layout, round trips and rejection of malformed input
package vban

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestEncodeScenario(t *testing.T) {
	payload := make([]byte, 256*2*2)
	for i := range payload {
		payload[i] = byte(i)
	}

	data, err := Encode(Header{
		SampleRate:      48000,
		SamplesPerFrame: 256,
		Channels:        2,
		BitsPerSample:   16,
		Name:            "Test",
		FrameCounter:    0,
	}, payload)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	pkt, ok := Decode(data)
	if !ok {
		t.Fatal("expected packet to decode")
	}
	if pkt.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", pkt.Channels)
	}
	if pkt.BitsPerSample != 16 {
		t.Errorf("expected 16 bits, got %d", pkt.BitsPerSample)
	}
	if pkt.SampleRate != 48000 {
		t.Errorf("expected 48000Hz, got %d", pkt.SampleRate)
	}
	if pkt.Name != "Test" {
		t.Errorf("expected name Test, got %q", pkt.Name)
	}
	if len(pkt.Payload) != 1024 {
		t.Errorf("expected 1024 payload bytes, got %d", len(pkt.Payload))
	}
}

func TestHeaderLayout(t *testing.T) {
	data, err := Encode(Header{
		SampleRate:      44100,
		SamplesPerFrame: 128,
		Channels:        6,
		BitsPerSample:   24,
		Name:            "abc",
		FrameCounter:    0x01020304,
	}, nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if len(data) != HeaderSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize, len(data))
	}
	if string(data[0:4]) != "VBAN" {
		t.Errorf("bad magic %q", data[0:4])
	}
	if data[4] != 16 {
		t.Errorf("expected rate index 16 for 44100, got %d", data[4])
	}
	if data[5] != 127 {
		t.Errorf("expected samples-1 = 127, got %d", data[5])
	}
	if data[6] != 5 {
		t.Errorf("expected channels-1 = 5, got %d", data[6])
	}
	if data[7] != 2 {
		t.Errorf("expected resolution code 2, got %d", data[7])
	}
	if !bytes.Equal(data[8:24], []byte("abc\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")) {
		t.Errorf("bad name field %v", data[8:24])
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != 0x01020304 {
		t.Errorf("expected counter 0x01020304, got %#x", got)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, rate := range Rates {
		for _, bits := range []int{8, 16, 24, 32} {
			for _, channels := range []int{1, 2, 8, 256} {
				h := Header{
					SampleRate:      rate,
					SamplesPerFrame: 17,
					Channels:        channels,
					BitsPerSample:   bits,
					Name:            "rt",
					FrameCounter:    42,
				}
				payload := bytes.Repeat([]byte{0xAB}, 17*channels*bits/8)

				data, err := Encode(h, payload)
				if err != nil {
					t.Fatalf("encode %v failed: %v", h, err)
				}
				pkt, ok := Decode(data)
				if !ok {
					t.Fatalf("decode %v rejected", h)
				}
				if pkt.Header != h {
					t.Errorf("header mismatch: sent %+v, got %+v", h, pkt.Header)
				}
				if !bytes.Equal(pkt.Payload, payload) {
					t.Errorf("payload mismatch for %+v", h)
				}
			}
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	base := Header{SampleRate: 48000, SamplesPerFrame: 1, Channels: 1, BitsPerSample: 16}

	tests := []struct {
		name   string
		modify func(h *Header)
		want   error
	}{
		{"unsupported rate", func(h *Header) { h.SampleRate = 47999 }, ErrUnsupportedRate},
		{"bad bit depth", func(h *Header) { h.BitsPerSample = 12 }, ErrBitDepth},
		{"zero samples", func(h *Header) { h.SamplesPerFrame = 0 }, ErrSamplesPerFrame},
		{"too many samples", func(h *Header) { h.SamplesPerFrame = 257 }, ErrSamplesPerFrame},
		{"zero channels", func(h *Header) { h.Channels = 0 }, ErrChannels},
		{"too many channels", func(h *Header) { h.Channels = 257 }, ErrChannels},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := base
			tt.modify(&h)
			_, err := Encode(h, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	valid, err := Encode(Header{SampleRate: 48000, SamplesPerFrame: 4, Channels: 2, BitsPerSample: 16, Name: "x"}, make([]byte, 16))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	mutate := func(f func(b []byte)) []byte {
		b := append([]byte(nil), valid...)
		f(b)
		return b
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", valid[:HeaderSize-1]},
		{"bad magic", mutate(func(b []byte) { b[0] = 'X' })},
		{"serial protocol", mutate(func(b []byte) { b[4] = 0x20 | 3 })},
		{"text protocol", mutate(func(b []byte) { b[4] = 0x40 | 3 })},
		{"rate index 21", mutate(func(b []byte) { b[4] = 21 })},
		{"rate index 31", mutate(func(b []byte) { b[4] = 31 })},
		{"non pcm codec", mutate(func(b []byte) { b[7] = 0x20 | 1 })},
		{"float resolution", mutate(func(b []byte) { b[7] = 4 })},
		{"resolution 7", mutate(func(b []byte) { b[7] = 7 })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := Decode(tt.data); ok {
				t.Error("expected packet to be rejected")
			}
		})
	}
}

func TestDecodeHeaderOnly(t *testing.T) {
	data, err := Encode(Header{SampleRate: 8000, SamplesPerFrame: 1, Channels: 1, BitsPerSample: 8}, nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	pkt, ok := Decode(data)
	if !ok {
		t.Fatal("expected header-only packet to decode")
	}
	if len(pkt.Payload) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(pkt.Payload))
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Stream1", "Stream1"},
		{"", ""},
		{"exactly16chars!!", "exactly16chars!!"},
		{"this name is far too long", "this name is far"},
		{"tab\there", "tab_here"},
		{"café", "caf__"},
	}

	for _, tt := range tests {
		got := NormalizeName(tt.input)
		if got != tt.expected {
			t.Errorf("NormalizeName(%q): expected %q, got %q", tt.input, tt.expected, got)
		}
		if len(got) > NameSize {
			t.Errorf("NormalizeName(%q) exceeds %d bytes", tt.input, NameSize)
		}
	}
}

func TestLongNameTruncatedOnWire(t *testing.T) {
	data, err := Encode(Header{SampleRate: 48000, SamplesPerFrame: 1, Channels: 1, BitsPerSample: 16, Name: "0123456789abcdefXYZ"}, []byte{0, 0})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	pkt, ok := Decode(data)
	if !ok {
		t.Fatal("expected decode")
	}
	if pkt.Name != "0123456789abcdef" {
		t.Errorf("expected truncated name, got %q", pkt.Name)
	}
}

func TestRateIndex(t *testing.T) {
	if len(Rates) != 21 {
		t.Fatalf("expected 21 rates, got %d", len(Rates))
	}
	tests := []struct {
		rate  int
		index int
		ok    bool
	}{
		{6000, 0, true},
		{48000, 3, true},
		{8000, 7, true},
		{11025, 14, true},
		{44100, 16, true},
		{705600, 20, true},
		{22000, 0, false},
	}
	for _, tt := range tests {
		idx, ok := RateIndex(tt.rate)
		if ok != tt.ok || (ok && idx != tt.index) {
			t.Errorf("RateIndex(%d): expected (%d,%v), got (%d,%v)", tt.rate, tt.index, tt.ok, idx, ok)
		}
	}
}

func TestBufferPool(t *testing.T) {
	b := GetBuffer()
	if len(*b) != 0 {
		t.Fatalf("expected empty buffer, got len %d", len(*b))
	}
	out, err := AppendPacket(*b, Header{SampleRate: 48000, SamplesPerFrame: 2, Channels: 1, BitsPerSample: 16}, []byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	*b = out
	PutBuffer(b)

	again := GetBuffer()
	if len(*again) != 0 {
		t.Errorf("pooled buffer not reset, len %d", len(*again))
	}
	PutBuffer(again)
	PutBuffer(nil)
}

func FuzzDecode(f *testing.F) {
	seed, _ := Encode(Header{SampleRate: 48000, SamplesPerFrame: 2, Channels: 2, BitsPerSample: 16, Name: "fuzz"}, make([]byte, 8))
	f.Add(seed)
	f.Add([]byte("VBAN"))
	f.Add(make([]byte, HeaderSize))

	f.Fuzz(func(t *testing.T, data []byte) {
		pkt, ok := Decode(data)
		if !ok {
			return
		}
		if pkt.SamplesPerFrame < 1 || pkt.SamplesPerFrame > MaxSamplesPerFrame {
			t.Fatalf("samples per frame out of range: %d", pkt.SamplesPerFrame)
		}
		if len(pkt.Name) > NameSize {
			t.Fatalf("name too long: %q", pkt.Name)
		}
		if !SupportedRate(pkt.SampleRate) {
			t.Fatalf("decoded unsupported rate %d", pkt.SampleRate)
		}
	})
}

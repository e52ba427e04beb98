// ABOUTME: Tests for capture sources
// ABOUTME: Tests tone generation, pacing, close behavior and source selection
package capture

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vbancast/vbancast-go/pkg/audio"
)

func TestToneFormats(t *testing.T) {
	for _, bits := range []int{8, 16, 24, 32} {
		format := audio.Format{SampleRate: 48000, Channels: 2, BitDepth: bits}
		src, err := NewTone(format, 440, false)
		if err != nil {
			t.Fatalf("%d-bit: unexpected error: %v", bits, err)
		}

		buf := make([]byte, 100*format.BytesPerFrame()+1)
		n, err := src.Read(buf)
		if err != nil {
			t.Fatalf("%d-bit: read failed: %v", bits, err)
		}
		if n != 100*format.BytesPerFrame() {
			t.Errorf("%d-bit: expected whole frames only, got %d bytes", bits, n)
		}
		if src.Format() != format {
			t.Errorf("%d-bit: format mismatch %v", bits, src.Format())
		}
		src.Close()
	}
}

func TestToneChannelsMatch(t *testing.T) {
	src, err := NewTone(audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 16}, 1000, false)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 48*4)
	if _, err := src.Read(buf); err != nil {
		t.Fatal(err)
	}

	nonZero := false
	for i := 0; i < 48; i++ {
		l := int16(binary.LittleEndian.Uint16(buf[i*4:]))
		r := int16(binary.LittleEndian.Uint16(buf[i*4+2:]))
		if l != r {
			t.Fatalf("frame %d: channels differ %d/%d", i, l, r)
		}
		if l > 16384 || l < -16384 {
			t.Fatalf("frame %d: sample %d exceeds half scale", i, l)
		}
		if l != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		t.Error("expected a non-silent tone")
	}
}

func TestToneInvalidFormat(t *testing.T) {
	if _, err := NewTone(audio.Format{SampleRate: 48000, Channels: 2, BitDepth: 12}, 440, false); err == nil {
		t.Error("expected error for 12-bit format")
	}
}

func TestToneCloseEndsRead(t *testing.T) {
	src, err := NewTone(audio.Format{SampleRate: 8000, Channels: 1, BitDepth: 16}, 440, true)
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 8000*2) // one second per read
	if _, err := src.Read(buf); err != nil {
		t.Fatalf("first read failed: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		src.Close()
	}()

	start := time.Now()
	_, err = src.Read(buf)
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after close, got %v", err)
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Error("close did not unblock a paced read")
	}
}

func TestPacerKeepsRealTime(t *testing.T) {
	done := make(chan struct{})
	p := newPacer(1000, done)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if !p.wait(20) {
			t.Fatal("unexpected cancel")
		}
	}
	elapsed := time.Since(start)
	if elapsed < 90*time.Millisecond {
		t.Errorf("expected ~100ms of pacing, took %v", elapsed)
	}
}

func TestPacerResetsWhenFarBehind(t *testing.T) {
	p := newPacer(1000, make(chan struct{}))
	p.start = time.Now().Add(-10 * time.Second)
	p.frames = 10

	if !p.wait(10) {
		t.Fatal("unexpected cancel")
	}
	if p.frames != 0 {
		t.Errorf("expected clock restart, frames=%d", p.frames)
	}
}

func TestOpen(t *testing.T) {
	src, err := Open("", audio.Format{})
	if err != nil {
		t.Fatalf("tone open failed: %v", err)
	}
	if src.Format() != DefaultFormat {
		t.Errorf("expected default format, got %v", src.Format())
	}
	src.Close()

	src, err = Open("tone", audio.Format{SampleRate: 44100, Channels: 1})
	if err != nil {
		t.Fatalf("tone open failed: %v", err)
	}
	if f := src.Format(); f.SampleRate != 44100 || f.Channels != 1 || f.BitDepth != 16 {
		t.Errorf("unexpected format %v", f)
	}
	src.Close()

	if _, err := Open(filepath.Join(t.TempDir(), "missing.mp3"), audio.Format{}); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}

	wav := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(wav, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(wav, audio.Format{}); err == nil || !strings.Contains(err.Error(), "unsupported audio format") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestOutputBits(t *testing.T) {
	tests := []struct{ in, out int }{
		{8, 8}, {12, 16}, {16, 16}, {20, 24}, {24, 24}, {32, 32},
	}
	for _, tt := range tests {
		if got := outputBits(tt.in); got != tt.out {
			t.Errorf("outputBits(%d): expected %d, got %d", tt.in, tt.out, got)
		}
	}
}

func TestMalgoFormat(t *testing.T) {
	for _, bits := range []int{16, 24, 32} {
		if _, err := malgoFormat(bits); err != nil {
			t.Errorf("%d-bit: unexpected error %v", bits, err)
		}
	}
	if _, err := malgoFormat(8); err == nil {
		t.Error("expected 8-bit capture to be rejected")
	}
}

func TestDeviceQueueDropsOldest(t *testing.T) {
	d := &Device{
		format: audio.Format{SampleRate: 48000, Channels: 1, BitDepth: 16},
		blocks: make(chan []byte, 2),
		done:   make(chan struct{}),
	}

	for i := 0; i < 3; i++ {
		d.onData([]byte{byte(i), 0}, 1)
	}
	if d.Dropped() != 1 {
		t.Errorf("expected 1 dropped block, got %d", d.Dropped())
	}

	buf := make([]byte, 2)
	for _, want := range []byte{1, 2} {
		n, err := d.Read(buf)
		if err != nil || n != 2 || buf[0] != want {
			t.Fatalf("expected block %d, got %v (n=%d err=%v)", want, buf, n, err)
		}
	}

	close(d.done)
	if _, err := d.Read(buf); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after close, got %v", err)
	}
}

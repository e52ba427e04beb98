// ABOUTME: Tests for the denoise lane and noise gate
// ABOUTME: Tests framing, resampling into frames and gate attenuation
package denoise

import (
	"testing"

	"github.com/vbancast/vbancast-go/pkg/audio"
	"github.com/vbancast/vbancast-go/pkg/audio/convert"
)

// countingDenoiser records frame sizes and negates samples
type countingDenoiser struct {
	frames []int
}

func (c *countingDenoiser) Denoise(frame []int16) {
	c.frames = append(c.frames, len(frame))
	for i := range frame {
		frame[i] = -frame[i]
	}
}

func TestLaneFramesAt48k(t *testing.T) {
	d := &countingDenoiser{}
	lane := NewLane(d)

	mono := make([]int16, 700)
	for i := range mono {
		mono[i] = 100
	}

	out := lane.ProcessMono(mono, 48000)
	if len(out) != FrameSize {
		t.Fatalf("expected one frame, got %d samples", len(out))
	}
	if lane.Pending() != 220 {
		t.Errorf("expected 220 pending, got %d", lane.Pending())
	}
	if out[0] != -100 {
		t.Errorf("expected denoised output, got %d", out[0])
	}

	out = lane.ProcessMono(mono[:260], 48000)
	if len(out) != FrameSize {
		t.Fatalf("expected second frame, got %d samples", len(out))
	}
	for _, n := range d.frames {
		if n != FrameSize {
			t.Errorf("denoiser saw frame of %d samples", n)
		}
	}
	if lane.Pending() != 0 {
		t.Errorf("expected nothing pending, got %d", lane.Pending())
	}
}

func TestLaneResamplesAndDownmixes(t *testing.T) {
	d := &countingDenoiser{}
	lane := NewLane(d)

	// one second of 44.1kHz stereo, fed in 10 ms chunks
	format := audio.Format{SampleRate: 44100, Channels: 2, BitDepth: 16}
	chunk := make([]int16, 441*2)
	for i := 0; i < 441; i++ {
		chunk[i*2] = 1000
		chunk[i*2+1] = 3000
	}
	data := convert.Int16ToBytes(nil, chunk)

	total := 0
	for i := 0; i < 100; i++ {
		out := lane.Process(data, format)
		if len(out)%FrameSize != 0 {
			t.Fatalf("output %d is not whole frames", len(out))
		}
		for _, s := range out {
			if s != -2000 {
				t.Fatalf("expected down-mixed and denoised -2000, got %d", s)
			}
		}
		total += len(out)
	}

	if total < 48000-2*FrameSize || total > 48000 {
		t.Errorf("expected about one second at 48kHz, got %d samples", total)
	}
}

func TestLaneReset(t *testing.T) {
	lane := NewLane(&countingDenoiser{})
	lane.ProcessMono(make([]int16, 100), 48000)
	lane.Reset()
	if lane.Pending() != 0 {
		t.Errorf("expected empty lane after reset, got %d", lane.Pending())
	}
}

func TestGate(t *testing.T) {
	g := NewGate(GateConfig{ThresholdDBFS: -40, FloorDB: -20, HoldFrames: 1})

	loud := make([]int16, FrameSize)
	for i := range loud {
		loud[i] = 10000
	}
	g.Denoise(loud)
	if loud[0] != 10000 {
		t.Errorf("loud frame altered: %d", loud[0])
	}

	quiet := func() []int16 {
		f := make([]int16, FrameSize)
		for i := range f {
			f[i] = 100
		}
		return f
	}

	held := quiet()
	g.Denoise(held)
	if held[0] != 100 {
		t.Errorf("expected hold frame to pass, got %d", held[0])
	}

	closed := quiet()
	g.Denoise(closed)
	if closed[0] != 10 {
		t.Errorf("expected -20dB attenuation to 10, got %d", closed[0])
	}
}

func TestGateFactoryIndependentState(t *testing.T) {
	f := GateFactory(DefaultGateConfig())
	a, b := f(), f()
	if a == b {
		t.Error("factory returned shared denoiser")
	}
}

// ABOUTME: Tests for audio resampler
// ABOUTME: Tests linear interpolation, carry-over across calls and rate changes
package resample

import (
	"math"
	"testing"
)

func TestNew(t *testing.T) {
	r := New(48000, 2)

	if r == nil {
		t.Fatal("expected resampler to be created")
	}
	if r.OutputRate() != 48000 {
		t.Errorf("expected outputRate 48000, got %d", r.OutputRate())
	}
	if r.channels != 2 {
		t.Errorf("expected channels 2, got %d", r.channels)
	}
}

func TestResampleUpsampling(t *testing.T) {
	r := New(48000, 2)

	// 100 stereo frames ramp
	input := make([]int16, 200)
	for i := range input {
		input[i] = int16(i * 100)
	}

	out := r.Resample(nil, input, 44100)
	if len(out) == 0 {
		t.Fatal("resampler produced no output")
	}

	expected := int(float64(len(input)) * 48000 / 44100)
	if len(out) < expected-10 || len(out) > expected+10 {
		t.Errorf("expected ~%d samples, got %d", expected, len(out))
	}
}

func TestResampleDownsampling(t *testing.T) {
	r := New(44100, 2)

	input := make([]int16, 200)
	for i := range input {
		input[i] = int16(i * 100)
	}

	out := r.Resample(nil, input, 48000)
	expected := int(float64(len(input)) * 44100 / 48000)
	if len(out) < expected-10 || len(out) > expected+10 {
		t.Errorf("expected ~%d samples, got %d", expected, len(out))
	}
}

func TestResampleSameRatePassthrough(t *testing.T) {
	r := New(48000, 2)

	input := make([]int16, 200)
	for i := range input {
		input[i] = int16(i * 100)
	}

	out := r.Resample(nil, input, 48000)
	if len(out) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(out))
	}
	for i := range input {
		if out[i] != input[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, input[i], out[i])
		}
	}
	if r.Pending() != 0 {
		t.Errorf("expected nothing carried, got %d frames", r.Pending())
	}
}

func TestResampleStereoPreserved(t *testing.T) {
	r := New(48000, 2)

	input := make([]int16, 20)
	for i := 0; i < 10; i++ {
		input[i*2] = 1000
		input[i*2+1] = -1000
	}

	out := r.Resample(nil, input, 44100)
	if len(out) == 0 {
		t.Fatal("resampler produced no output")
	}
	for i := 0; i < len(out)/2; i++ {
		if out[i*2] != 1000 || out[i*2+1] != -1000 {
			t.Fatalf("frame %d: expected (1000,-1000), got (%d,%d)", i, out[i*2], out[i*2+1])
		}
	}
}

func TestResampleInterpolates(t *testing.T) {
	// 24k -> 48k puts one output exactly halfway between each input pair
	r := New(48000, 1)

	out := r.Resample(nil, []int16{0, 100, 200}, 24000)
	expected := []int16{0, 50, 100, 150}
	if len(out) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, out)
	}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("sample %d: expected %d, got %d", i, expected[i], out[i])
		}
	}
	if r.Pending() != 1 {
		t.Errorf("expected last input frame carried, got %d", r.Pending())
	}
}

func TestResampleTotalAcrossCalls(t *testing.T) {
	chunkSizes := []int{1, 7, 64, 441, 480, 1000, 3}
	const n = 44100

	r := New(48000, 1)
	input := make([]int16, n)
	for i := range input {
		input[i] = int16(10000 * math.Sin(float64(i)/20))
	}

	var out []int16
	for offset, i := 0, 0; offset < n; i++ {
		size := chunkSizes[i%len(chunkSizes)]
		if offset+size > n {
			size = n - offset
		}
		out = r.Resample(out, input[offset:offset+size], 44100)
		offset += size
	}

	expected := int(math.Round(float64(n) * 48000 / 44100))
	if diff := len(out) - expected; diff < -1 || diff > 1 {
		t.Errorf("expected %d±1 samples, got %d", expected, len(out))
	}
}

func TestResampleChunkingMatchesSingleCall(t *testing.T) {
	input := make([]int16, 2000)
	for i := range input {
		input[i] = int16(i*37%2000 - 1000)
	}

	whole := New(48000, 1).Resample(nil, input, 44100)

	r := New(48000, 1)
	var pieces []int16
	for i := 0; i < len(input); i += 123 {
		end := i + 123
		if end > len(input) {
			end = len(input)
		}
		pieces = r.Resample(pieces, input[i:end], 44100)
	}

	if len(pieces) != len(whole) {
		t.Fatalf("expected %d samples, got %d", len(whole), len(pieces))
	}
	for i := range whole {
		if pieces[i] != whole[i] {
			t.Fatalf("sample %d differs: %d vs %d", i, whole[i], pieces[i])
		}
	}
}

func TestResampleInsufficientInput(t *testing.T) {
	r := New(48000, 1)

	out := r.Resample(nil, []int16{5}, 44100)
	if len(out) != 0 {
		t.Errorf("expected no output from one sample, got %d", len(out))
	}
	if r.Pending() != 1 {
		t.Errorf("expected 1 pending frame, got %d", r.Pending())
	}
}

func TestResampleRateChangeResets(t *testing.T) {
	r := New(48000, 1)

	r.Resample(nil, []int16{1, 2, 3, 4, 5}, 44100)
	if r.Pending() == 0 {
		t.Fatal("expected carried frames before rate change")
	}

	out := r.Resample(nil, []int16{7, 7, 7, 7}, 48000)
	if len(out) != 4 {
		t.Errorf("expected passthrough after reset, got %d samples", len(out))
	}
	for _, s := range out {
		if s != 7 {
			t.Errorf("old-rate samples leaked into output: %v", out)
			break
		}
	}
}

func TestResampleLargeRatioDown(t *testing.T) {
	r := New(48000, 2)

	input := make([]int16, 2000)
	out := r.Resample(nil, input, 192000)
	if len(out) == 0 {
		t.Fatal("resampler produced no output")
	}
	if len(out) > len(input)/2 {
		t.Errorf("expected at most 1/2 samples after downsampling, got %d from %d", len(out), len(input))
	}
}

func TestResampleEmptyInput(t *testing.T) {
	r := New(48000, 2)

	if out := r.Resample(nil, nil, 44100); len(out) != 0 {
		t.Errorf("expected 0 samples from empty input, got %d", len(out))
	}
	if out := r.Resample(nil, []int16{1, 2}, 0); len(out) != 0 {
		t.Errorf("expected 0 samples for invalid rate, got %d", len(out))
	}
}

func TestOutputFramesFor(t *testing.T) {
	r := New(48000, 1)
	if got := r.OutputFramesFor(441, 44100); got != 480 {
		t.Errorf("expected 480, got %d", got)
	}
	if got := r.OutputFramesFor(100, 0); got != 0 {
		t.Errorf("expected 0 for invalid rate, got %d", got)
	}
}

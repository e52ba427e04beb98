// ABOUTME: Denoiser interface and the denoise lane
// ABOUTME: Converts captured or received PCM into whole 480-sample frames
package denoise

import (
	"github.com/vbancast/vbancast-go/pkg/audio"
	"github.com/vbancast/vbancast-go/pkg/audio/convert"
	"github.com/vbancast/vbancast-go/pkg/audio/resample"
)

// FrameSize is the number of 48kHz mono samples in one denoise frame (10 ms)
const FrameSize = 480

// Denoiser suppresses noise in one frame of FrameSize samples in place.
// Implementations keep per-stream state and are not shared between streams.
type Denoiser interface {
	Denoise(frame []int16)
}

// Factory creates a Denoiser for a new stream
type Factory func() Denoiser

// Lane feeds arbitrary PCM through a Denoiser in whole frames
type Lane struct {
	denoiser  Denoiser
	resampler *resample.Resampler
	mono      []int16
	pending   []int16
	out       []int16
}

// NewLane creates a lane around d
func NewLane(d Denoiser) *Lane {
	return &Lane{
		denoiser:  d,
		resampler: resample.New(audio.CanonicalRate, 1),
	}
}

// Process converts data in format src to mono 16-bit 48kHz, denoises every
// complete frame and returns the denoised samples. The result is a whole
// number of frames, possibly empty, and is only valid until the next call.
func (l *Lane) Process(data []byte, src audio.Format) []int16 {
	l.mono = convert.ToInt16(l.mono[:0], data, src, 1)
	return l.ProcessMono(l.mono, src.SampleRate)
}

// ProcessMono is Process for mono 16-bit input at sampleRate
func (l *Lane) ProcessMono(mono []int16, sampleRate int) []int16 {
	l.pending = l.resampler.Resample(l.pending, mono, sampleRate)

	frames := len(l.pending) / FrameSize
	l.out = l.out[:0]
	if frames == 0 {
		return l.out
	}

	n := frames * FrameSize
	for i := 0; i < n; i += FrameSize {
		l.denoiser.Denoise(l.pending[i : i+FrameSize])
	}
	l.out = append(l.out, l.pending[:n]...)

	rest := copy(l.pending, l.pending[n:])
	l.pending = l.pending[:rest]
	return l.out
}

// Pending returns the number of resampled samples waiting for a full frame
func (l *Lane) Pending() int {
	return len(l.pending)
}

// Reset drops buffered audio and resampler state
func (l *Lane) Reset() {
	l.pending = l.pending[:0]
	l.resampler.Reset()
}

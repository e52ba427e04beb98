// ABOUTME: Test tone generator source
// ABOUTME: Generates a sine wave in any supported PCM format
package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/vbancast/vbancast-go/pkg/audio"
)

// ToneSource generates a sine wave test tone
type ToneSource struct {
	format      audio.Format
	frequency   float64
	sampleIndex uint64
	pacer       *pacer
	mu          sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// NewTone creates a tone generator. A paced tone delivers audio no faster
// than real time.
func NewTone(format audio.Format, frequency float64, paced bool) (*ToneSource, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("tone source: %w", err)
	}
	s := &ToneSource{
		format:    format,
		frequency: frequency,
		done:      make(chan struct{}),
	}
	if paced {
		s.pacer = newPacer(format.SampleRate, s.done)
	}
	return s, nil
}

func (s *ToneSource) Read(p []byte) (int, error) {
	select {
	case <-s.done:
		return 0, io.EOF
	default:
	}

	s.mu.Lock()
	bps := s.format.BytesPerSample()
	frames := s.format.Frames(len(p))

	for i := 0; i < frames; i++ {
		t := float64(s.sampleIndex+uint64(i)) / float64(s.format.SampleRate)
		v := math.Sin(2*math.Pi*s.frequency*t) * 0.5 // 50% volume

		for ch := 0; ch < s.format.Channels; ch++ {
			putSample(p[(i*s.format.Channels+ch)*bps:], v, s.format.BitDepth)
		}
	}
	s.sampleIndex += uint64(frames)
	s.mu.Unlock()

	if s.pacer != nil && !s.pacer.wait(frames) {
		return 0, io.EOF
	}
	return frames * s.format.BytesPerFrame(), nil
}

func (s *ToneSource) Format() audio.Format { return s.format }

func (s *ToneSource) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// putSample writes v in [-1, 1] as a little-endian signed sample
func putSample(b []byte, v float64, bitDepth int) {
	switch bitDepth {
	case 8:
		b[0] = byte(int8(v * math.MaxInt8))
	case 16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v*math.MaxInt16)))
	case 24:
		p := audio.SampleTo24Bit(int32(v * audio.Max24Bit))
		copy(b, p[:])
	case 32:
		binary.LittleEndian.PutUint32(b, uint32(int32(v*math.MaxInt32)))
	}
}

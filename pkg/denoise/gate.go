// ABOUTME: Built-in noise gate denoiser
// ABOUTME: Attenuates frames whose RMS level falls below a threshold
package denoise

import (
	"math"

	"github.com/vbancast/vbancast-go/pkg/audio/gain"
)

// GateConfig configures a noise gate
type GateConfig struct {
	ThresholdDBFS float64 // frames quieter than this are attenuated
	FloorDB       float64 // attenuation applied while closed
	HoldFrames    int     // frames the gate stays open after the signal drops
}

// DefaultGateConfig returns settings suited to speech
func DefaultGateConfig() GateConfig {
	return GateConfig{
		ThresholdDBFS: -50,
		FloorDB:       -30,
		HoldFrames:    20,
	}
}

// Gate is a frame-level noise gate
type Gate struct {
	threshold float64 // linear RMS
	floor     int32   // Q15 gain
	hold      int
	held      int
}

// NewGate creates a noise gate
func NewGate(cfg GateConfig) *Gate {
	return &Gate{
		threshold: math.MaxInt16 * math.Pow(10, cfg.ThresholdDBFS/20),
		floor:     gain.Q15(math.Pow(10, cfg.FloorDB/20)),
		hold:      cfg.HoldFrames,
	}
}

// GateFactory returns a Factory producing gates with cfg
func GateFactory(cfg GateConfig) Factory {
	return func() Denoiser { return NewGate(cfg) }
}

func (g *Gate) Denoise(frame []int16) {
	if rms(frame) >= g.threshold {
		g.held = g.hold
		return
	}
	if g.held > 0 {
		g.held--
		return
	}
	gain.Apply16(frame, g.floor)
}

func rms(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}

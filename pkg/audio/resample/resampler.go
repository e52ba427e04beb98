// ABOUTME: Stateful linear resampler for converting audio sample rates
// ABOUTME: Carries unconsumed input across calls so chunk boundaries lose nothing
package resample

// Resampler performs linear interpolation from an arbitrary input rate to a
// fixed output rate. It is not safe for concurrent use; keep one per stream.
type Resampler struct {
	outputRate int
	channels   int
	inputRate  int     // last seen input rate, 0 until first call
	carry      []int16 // interleaved input frames not yet consumed
	position   int64   // read position in input frames, scaled by outputRate
}

// New creates a resampler producing interleaved samples at outputRate
func New(outputRate, channels int) *Resampler {
	if channels < 1 {
		channels = 1
	}
	return &Resampler{
		outputRate: outputRate,
		channels:   channels,
	}
}

// Resample converts interleaved input at inputRate and appends the output
// to dst. It returns dst unchanged when not enough input has accumulated
// for a single output frame. A change of inputRate resets the state.
func (r *Resampler) Resample(dst, input []int16, inputRate int) []int16 {
	if inputRate <= 0 || r.outputRate <= 0 {
		return dst
	}
	if inputRate != r.inputRate {
		r.Reset()
		r.inputRate = inputRate
	}

	whole := (len(input) / r.channels) * r.channels
	input = input[:whole]
	if len(input) == 0 {
		return dst
	}

	// Matching rates with nothing carried over need no interpolation
	if inputRate == r.outputRate && len(r.carry) == 0 && r.position == 0 {
		return append(dst, input...)
	}

	r.carry = append(r.carry, input...)
	frames := int64(len(r.carry) / r.channels)
	out := int64(r.outputRate)
	step := int64(inputRate)

	for {
		idx := r.position / out
		if idx+1 >= frames {
			break
		}
		frac := r.position % out

		base := int(idx) * r.channels
		for ch := 0; ch < r.channels; ch++ {
			s1 := int64(r.carry[base+ch])
			s2 := int64(r.carry[base+r.channels+ch])
			dst = append(dst, int16(s1+(s2-s1)*frac/out))
		}

		r.position += step
	}

	// Drop consumed frames, keeping the fractional part of the position
	consumed := r.position / out
	if consumed > frames {
		consumed = frames
	}
	if consumed > 0 {
		n := copy(r.carry, r.carry[int(consumed)*r.channels:])
		r.carry = r.carry[:n]
		r.position -= consumed * out
	}

	return dst
}

// Reset clears carried samples and the fractional position
func (r *Resampler) Reset() {
	r.carry = r.carry[:0]
	r.position = 0
	r.inputRate = 0
}

// Pending returns the number of input frames carried to the next call
func (r *Resampler) Pending() int {
	return len(r.carry) / r.channels
}

// OutputRate returns the fixed output rate
func (r *Resampler) OutputRate() int {
	return r.outputRate
}

// OutputFramesFor estimates how many output frames inputFrames will yield
func (r *Resampler) OutputFramesFor(inputFrames, inputRate int) int {
	if inputRate <= 0 {
		return 0
	}
	return int(int64(inputFrames) * int64(r.outputRate) / int64(inputRate))
}

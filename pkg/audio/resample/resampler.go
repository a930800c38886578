// ABOUTME: Simple linear resampler for converting audio sample rates
// ABOUTME: Converts planar PCM buffers between rates using linear interpolation
package resample

import (
	"github.com/Sendspin/phonograph-go/pkg/audio"
)

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	ratio      float64
}

// New creates a new resampler
func New(inputRate, outputRate int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		ratio:      float64(inputRate) / float64(outputRate),
	}
}

// Resample converts one channel of samples to the output rate
func (r *Resampler) Resample(input []float32) []float32 {
	if len(input) == 0 {
		return nil
	}
	if r.inputRate == r.outputRate {
		return append([]float32(nil), input...)
	}

	output := make([]float32, r.OutputFramesNeeded(len(input)))
	last := len(input) - 1

	for i := range output {
		pos := float64(i) * r.ratio
		idx := int(pos)
		if idx >= last {
			output[i] = input[last]
			continue
		}

		frac := float32(pos - float64(idx))
		output[i] = input[idx]*(1-frac) + input[idx+1]*frac
	}

	return output
}

// Buffer converts every channel of pcm to the output rate
func (r *Resampler) Buffer(pcm *audio.PCM) *audio.PCM {
	out := &audio.PCM{SampleRate: r.outputRate, Channels: make([][]float32, len(pcm.Channels))}
	for ch, data := range pcm.Channels {
		out.Channels[ch] = r.Resample(data)
	}
	return out
}

// OutputFramesNeeded calculates how many output frames will be produced from input frames
func (r *Resampler) OutputFramesNeeded(inputFrames int) int {
	return int(int64(inputFrames) * int64(r.outputRate) / int64(r.inputRate))
}

// InputFramesNeeded calculates how many input frames are needed to produce output frames
func (r *Resampler) InputFramesNeeded(outputFrames int) int {
	return int(int64(outputFrames) * int64(r.inputRate) / int64(r.outputRate))
}

// To returns pcm converted to rate, or pcm itself when rates already match
func To(pcm *audio.PCM, rate int) *audio.PCM {
	if pcm == nil || pcm.SampleRate == rate || pcm.SampleRate == 0 {
		return pcm
	}
	return New(pcm.SampleRate, rate).Buffer(pcm)
}

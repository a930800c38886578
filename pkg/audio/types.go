// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, planar PCM buffers and sample conversions
package audio

import (
	"math"
	"time"
)

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// PCM is decoded audio held as one float32 slice per channel.
// Samples are normalised to [-1, 1].
type PCM struct {
	SampleRate int
	Channels   [][]float32
}

// NewPCM allocates a silent buffer of the given shape
func NewPCM(sampleRate, channels, frames int) *PCM {
	p := &PCM{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for ch := range p.Channels {
		p.Channels[ch] = make([]float32, frames)
	}
	return p
}

// Len returns the number of sample frames
func (p *PCM) Len() int {
	if p == nil || len(p.Channels) == 0 {
		return 0
	}
	return len(p.Channels[0])
}

// NumChannels returns the channel count
func (p *PCM) NumChannels() int {
	if p == nil {
		return 0
	}
	return len(p.Channels)
}

// Duration returns the length of the buffer in seconds
func (p *PCM) Duration() float64 {
	if p == nil || p.SampleRate == 0 {
		return 0
	}
	return float64(p.Len()) / float64(p.SampleRate)
}

// TimeDuration returns Duration as a time.Duration
func (p *PCM) TimeDuration() time.Duration {
	return time.Duration(p.Duration() * float64(time.Second))
}

// Format describes the buffer as a 32-bit float format
func (p *PCM) Format() Format {
	return Format{Codec: "pcm", SampleRate: p.SampleRate, Channels: p.NumChannels(), BitDepth: 32}
}

// TrimFront returns a fresh buffer without the first floor(seconds*rate)
// frames, along with the number of frames dropped. The receiver is not
// modified.
func (p *PCM) TrimFront(seconds float64) (*PCM, int) {
	skip := 0
	if seconds > 0 {
		skip = int(math.Floor(seconds * float64(p.SampleRate)))
	}
	if skip > p.Len() {
		skip = p.Len()
	}

	out := &PCM{SampleRate: p.SampleRate, Channels: make([][]float32, len(p.Channels))}
	for ch, data := range p.Channels {
		out.Channels[ch] = append([]float32(nil), data[skip:]...)
	}
	return out, skip
}

// SampleFromInt16 converts a 16-bit sample to float32 in [-1, 1)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768.0
}

// SampleToInt16 converts a float32 sample to 16-bit, clipping out of range values
func SampleToInt16(sample float32) int16 {
	sample = Clip(sample)
	if sample >= 1 {
		return math.MaxInt16
	}
	return int16(sample * 32768.0)
}

// Clip clamps a sample to [-1, 1]
func Clip(sample float32) float32 {
	if sample > 1 {
		return 1
	}
	if sample < -1 {
		return -1
	}
	return sample
}

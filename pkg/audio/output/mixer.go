// ABOUTME: Software mixer implementing the output Context
// ABOUTME: Renders scheduled sources to interleaved float32 for a device to pull
package output

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/Sendspin/phonograph-go/pkg/audio"
	"github.com/Sendspin/phonograph-go/pkg/audio/resample"
)

const bytesPerSample = 4

// Mixer sums scheduled voices into a stream read by an audio device.
// Its clock advances as the device pulls frames.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	rendered   int64
	reported   int64 // last frame position returned by Now
	voices     []*voice
	closed     bool

	// latency reports frames read but not yet audible
	latency func() int
}

// NewMixer creates a mixer at the given device format
func NewMixer(sampleRate, channels int) *Mixer {
	return &Mixer{
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// SetLatency installs a callback reporting frames buffered downstream
func (m *Mixer) SetLatency(fn func() int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = fn
}

// SampleRate returns the device rate
func (m *Mixer) SampleRate() int {
	return m.sampleRate
}

// Channels returns the device channel count
func (m *Mixer) Channels() int {
	return m.channels
}

// Now returns the audible position of the output in seconds
func (m *Mixer) Now() float64 {
	m.mu.Lock()
	rendered := m.rendered
	latency := m.latency
	m.mu.Unlock()

	// called unlocked: the device may hold its own lock around Read
	if latency != nil {
		rendered -= int64(latency())
	}

	// downstream buffer reports can lag a block read; never step back
	m.mu.Lock()
	if rendered < m.reported {
		rendered = m.reported
	}
	m.reported = rendered
	m.mu.Unlock()

	return float64(rendered) / float64(m.sampleRate)
}

// Active returns the number of scheduled or playing voices
func (m *Mixer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// NewSource binds buf to a new voice, resampling to the device rate if needed
func (m *Mixer) NewSource(buf *audio.PCM, bus *Bus) (Source, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if bus == nil {
		bus = NewBus()
	}

	return &voice{
		mixer:    m,
		pcm:      resample.To(buf, m.sampleRate),
		bus:      bus,
		gain:     NewParam(1),
		duration: buf.Duration(),
	}, nil
}

// Close stops all voices and refuses new ones
func (m *Mixer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.voices = nil
}

// Read renders the next block as interleaved little-endian float32
func (m *Mixer) Read(p []byte) (int, error) {
	frameBytes := bytesPerSample * m.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	mix := make([]float32, frames*m.channels)

	m.mu.Lock()
	base := m.rendered
	live := m.voices[:0]
	for _, v := range m.voices {
		if v.render(mix, base, frames, m.channels) {
			live = append(live, v)
		}
	}
	for i := len(live); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = live
	m.rendered += int64(frames)
	m.mu.Unlock()

	for i, s := range mix {
		binary.LittleEndian.PutUint32(p[i*bytesPerSample:], math.Float32bits(audio.Clip(s)))
	}
	return frames * frameBytes, nil
}

// voice is a Source rendered by a Mixer
type voice struct {
	mixer    *Mixer
	pcm      *audio.PCM
	bus      *Bus
	gain     *Param
	duration float64

	// guarded by mixer.mu
	started    bool
	stopped    bool
	startFrame int64
}

func (v *voice) Gain() *Param      { return v.gain }
func (v *voice) Duration() float64 { return v.duration }

func (v *voice) Start(at float64) error {
	m := v.mixer
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if v.started {
		return ErrAlreadyStarted
	}
	v.started = true

	v.startFrame = int64(math.Round(at * float64(m.sampleRate)))
	if v.startFrame < m.rendered {
		v.startFrame = m.rendered
	}
	m.voices = append(m.voices, v)
	return nil
}

func (v *voice) Stop() {
	m := v.mixer
	m.mu.Lock()
	defer m.mu.Unlock()
	v.stopped = true
}

// render adds this voice into mix and reports whether it is still live
func (v *voice) render(mix []float32, base int64, frames, channels int) bool {
	if v.stopped {
		return false
	}

	length := int64(v.pcm.Len())
	src := v.pcm.Channels
	rate := float64(v.mixer.sampleRate)

	for f := 0; f < frames; f++ {
		idx := base + int64(f) - v.startFrame
		if idx < 0 {
			continue
		}
		if idx >= length {
			return false
		}

		t := float64(base+int64(f)) / rate
		g := float32(v.gain.ValueAt(t) * v.bus.gain.ValueAt(t))
		if g == 0 {
			continue
		}
		for ch := 0; ch < channels; ch++ {
			sc := ch
			if sc >= len(src) {
				sc = len(src) - 1
			}
			mix[f*channels+ch] += src[sc][idx] * g
		}
	}

	return base+int64(frames)-v.startFrame < length
}

// ABOUTME: Audio output capability interfaces
// ABOUTME: Schedulable sources, gain buses and the output clock
package output

import (
	"errors"

	"github.com/Sendspin/phonograph-go/pkg/audio"
)

var (
	// ErrAlreadyStarted is returned when Start is called twice on a source
	ErrAlreadyStarted = errors.New("output: source already started")

	// ErrClosed is returned when creating sources on a closed context
	ErrClosed = errors.New("output: context closed")
)

// Context is an output device that plays scheduled sources against a
// monotonically increasing clock measured in seconds.
type Context interface {
	// Now returns the output clock
	Now() float64

	// SampleRate returns the device rate
	SampleRate() int

	// NewSource binds a buffer to a source routed through bus
	NewSource(buf *audio.PCM, bus *Bus) (Source, error)
}

// Source is a one-shot playback of a PCM buffer
type Source interface {
	// Gain is the per-source gain, applied before the bus gain
	Gain() *Param

	// Start schedules playback at output time at. Times in the past
	// start immediately.
	Start(at float64) error

	// Stop halts playback. Stopping twice is harmless.
	Stop()

	// Duration is the buffer length in seconds
	Duration() float64
}

// Bus is a routing node shared by the sources of one player
type Bus struct {
	gain *Param
}

// NewBus creates a bus at unity gain
func NewBus() *Bus {
	return &Bus{gain: NewParam(1)}
}

// Gain returns the bus gain
func (b *Bus) Gain() *Param {
	return b.gain
}

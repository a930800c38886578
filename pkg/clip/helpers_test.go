// ABOUTME: Test doubles for clip tests
// ABOUTME: Fake decoder, scripted loader and a manually clocked output
package clip

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sendspin/phonograph-go/pkg/audio"
	"github.com/Sendspin/phonograph-go/pkg/audio/decode"
	"github.com/Sendspin/phonograph-go/pkg/audio/mpeg"
	"github.com/Sendspin/phonograph-go/pkg/audio/mpeg/mpegtest"
	"github.com/Sendspin/phonograph-go/pkg/audio/output"
	"github.com/Sendspin/phonograph-go/pkg/stream"
)

const testRate = 1000

// frameDecoder succeeds only on data starting with a frame header and
// returns one sample frame per input byte
type frameDecoder struct {
	mu    sync.Mutex
	calls int
}

func (d *frameDecoder) Decode(ctx context.Context, data []byte) (*audio.PCM, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()

	if _, ok := mpeg.ReadReference(data, 0); !ok {
		return nil, decode.ErrMisaligned
	}
	return audio.NewPCM(testRate, 2, len(data)), nil
}

func (d *frameDecoder) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// byteDecoder accepts anything and returns one sample frame per byte
var byteDecoder = decode.Func(func(ctx context.Context, data []byte) (*audio.PCM, error) {
	return audio.NewPCM(testRate, 2, len(data)), nil
})

// scriptLoader records handlers so tests can drive the load by hand
type scriptLoader struct {
	mu        sync.Mutex
	handlers  stream.Handlers
	loads     int
	cancelled int
}

func (l *scriptLoader) Load(h stream.Handlers) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = h
	l.loads++
}

func (l *scriptLoader) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelled++
}

func (l *scriptLoader) h() stream.Handlers {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handlers
}

func (l *scriptLoader) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

// feed delivers data in chunks of size n with progress
func (l *scriptLoader) feed(data []byte, n int, total int64) {
	h := l.h()
	var loaded int64
	for len(data) > 0 {
		k := n
		if k > len(data) {
			k = len(data)
		}
		h.OnData(append([]byte(nil), data[:k]...))
		loaded += int64(k)
		h.OnProgress(float64(loaded)/float64(total), loaded, total)
		data = data[k:]
	}
}

// fakeOutput is an output.Context with a hand-driven clock
type fakeOutput struct {
	mu        sync.Mutex
	now       float64
	sources   []*fakeSource
	failStart bool
	failNew   bool
}

type fakeSource struct {
	out     *fakeOutput
	buf     *audio.PCM
	bus     *output.Bus
	gain    *output.Param
	startAt float64
	started bool
	stops   int
}

func (o *fakeOutput) Now() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *fakeOutput) SetNow(t float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now = t
}

func (o *fakeOutput) SampleRate() int { return testRate }

func (o *fakeOutput) NewSource(buf *audio.PCM, bus *output.Bus) (output.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failNew {
		return nil, context.DeadlineExceeded
	}
	s := &fakeSource{out: o, buf: buf, bus: bus, gain: output.NewParam(1)}
	o.sources = append(o.sources, s)
	return s, nil
}

func (o *fakeOutput) Fail(newSource, start bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failNew = newSource
	o.failStart = start
}

func (o *fakeOutput) Sources() []*fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*fakeSource(nil), o.sources...)
}

func (s *fakeSource) Gain() *output.Param { return s.gain }
func (s *fakeSource) Duration() float64   { return s.buf.Duration() }

func (s *fakeSource) Start(at float64) error {
	s.out.mu.Lock()
	defer s.out.mu.Unlock()
	if s.out.failStart {
		return output.ErrClosed
	}
	if s.started {
		return output.ErrAlreadyStarted
	}
	s.started = true
	s.startAt = at
	return nil
}

func (s *fakeSource) Stop() {
	s.out.mu.Lock()
	defer s.out.mu.Unlock()
	s.stops++
}

func (s *fakeSource) Stops() int {
	s.out.mu.Lock()
	defer s.out.mu.Unlock()
	return s.stops
}

func (s *fakeSource) StartAt() float64 {
	s.out.mu.Lock()
	defer s.out.mu.Unlock()
	return s.startAt
}

// fastConfig returns a config with short intervals
func fastConfig(out output.Context, loader stream.Loader, dec decode.Decoder) Config {
	return Config{
		URL:              "test://clip.mp3",
		Output:           out,
		Loader:           loader,
		Decoder:          dec,
		TickInterval:     2 * time.Millisecond,
		ProgressInterval: 2 * time.Millisecond,
		RetryDelay:       2 * time.Millisecond,
		EndPollInterval:  2 * time.Millisecond,
	}
}

// readySegment builds a decoded, attached segment whose extended bytes
// decode (with byteDecoder) to duration seconds at testRate
func readySegment(duration float64) *Segment {
	n := int(duration * testRate)
	seg := NewSegment(make([]byte, n), 0, mpeg.ReferenceHeader{}, mpeg.Metadata{SampleRate: testRate}, byteDecoder)
	seg.state = SegmentDecoded
	seg.duration = duration
	seg.attached = true
	seg.ready = true
	seg.extended = seg.raw
	close(seg.readyCh)
	return seg
}

// loadedClip returns a clip whose session already holds segs and has loaded
func loadedClip(t *testing.T, out *fakeOutput, durations ...float64) *Clip {
	t.Helper()
	loader := &scriptLoader{}
	c, err := New(fastConfig(out, loader, byteDecoder))
	require.NoError(t, err)

	s := c.session
	s.mu.Lock()
	for _, d := range durations {
		s.segments = append(s.segments, readySegment(d))
	}
	s.loadStarted = true
	s.loaded = true
	s.canPlayThrough = true
	s.haveRef = true
	s.mu.Unlock()
	return c
}

// collector records payloads for one event
type collector struct {
	mu       sync.Mutex
	payloads []Payload
}

func collect(c *Clip, ev Event) *collector {
	col := &collector{}
	c.On(ev, func(p Payload) {
		col.mu.Lock()
		defer col.mu.Unlock()
		col.payloads = append(col.payloads, p)
	})
	return col
}

func (col *collector) Len() int {
	col.mu.Lock()
	defer col.mu.Unlock()
	return len(col.payloads)
}

func (col *collector) Last() Payload {
	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.payloads) == 0 {
		return nil
	}
	return col.payloads[len(col.payloads)-1]
}

// stream of n default frames, optionally preceded by a prologue
func frames(n int) []byte {
	return mpegtest.Frames(mpegtest.Default, n)
}

func defaultRef() (mpeg.ReferenceHeader, mpeg.Metadata) {
	return mpegtest.Reference(mpegtest.Default)
}

const waitFor = 2 * time.Second
const pollEvery = time.Millisecond

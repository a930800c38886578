// ABOUTME: Clip is a progressively loaded, gapless MP3 player head
// ABOUTME: Configuration, state accessors, buffering, events, cloning and disposal
package clip

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	isync "github.com/Sendspin/phonograph-go/internal/sync"
	"github.com/Sendspin/phonograph-go/pkg/audio/decode"
	"github.com/Sendspin/phonograph-go/pkg/audio/mpeg"
	"github.com/Sendspin/phonograph-go/pkg/audio/output"
	"github.com/Sendspin/phonograph-go/pkg/stream"
)

// Defaults
const (
	DefaultChunkSize          = 64 * 1024
	DefaultOverlap            = 0.2
	DefaultFirstSegmentOffset = 32
	DefaultTickInterval       = 500 * time.Millisecond
	DefaultProgressInterval   = 16 * time.Millisecond
	DefaultRetryDelay         = 100 * time.Millisecond
	DefaultEndPollInterval    = 16 * time.Millisecond
)

// Config holds clip configuration
type Config struct {
	// URL is an http(s) address or a file path
	URL string

	// Output is the playback device. Required.
	Output output.Context

	// Loader defaults to stream.New(URL)
	Loader stream.Loader

	// Decoder defaults to decode.NewMP3()
	Decoder decode.Decoder

	Loop bool

	// Volume is the initial gain. Nil selects 1; use Float(0) to start muted.
	Volume *float64

	ChunkSize int

	// FirstSegmentOffset is where decoding of the first segment starts.
	// Zero selects the default; negative disables the skip.
	FirstSegmentOffset int

	// Overlap is the crossfade length in seconds
	Overlap float64

	TickInterval     time.Duration
	ProgressInterval time.Duration
	RetryDelay       time.Duration
	EndPollInterval  time.Duration

	// Now is the wall clock used for download rate estimates
	Now func() time.Time
}

func (cfg *Config) applyDefaults() {
	if cfg.Loader == nil {
		cfg.Loader = stream.New(cfg.URL, stream.HTTPConfig{})
	}
	if cfg.Decoder == nil {
		cfg.Decoder = decode.NewMP3()
	}
	if cfg.Volume == nil {
		cfg.Volume = Float(1)
	} else if *cfg.Volume < 0 {
		cfg.Volume = Float(0)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.FirstSegmentOffset == 0 {
		cfg.FirstSegmentOffset = DefaultFirstSegmentOffset
	} else if cfg.FirstSegmentOffset < 0 {
		cfg.FirstSegmentOffset = 0
	}
	if cfg.Overlap <= 0 {
		cfg.Overlap = DefaultOverlap
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.EndPollInterval <= 0 {
		cfg.EndPollInterval = DefaultEndPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
}

// Float returns a pointer to v, for optional Config fields
func Float(v float64) *float64 {
	return &v
}

// Clip is one playback head over a shared load session
type Clip struct {
	id      string
	cfg     Config
	out     output.Context
	session *loadSession
	owner   bool
	events  *emitter
	bus     *output.Bus
	clock   *isync.ClockSync

	mu             sync.Mutex
	volume         float64
	loop           bool
	playing        bool
	ended          bool
	disposed       bool
	currentTime    float64
	startTime      float64
	ctxTimeAtStart float64
	play           *playSession
}

// New creates a clip. Nothing is fetched until Buffer or Play is called.
func New(cfg Config) (*Clip, error) {
	if cfg.Output == nil {
		return nil, errors.New("clip: output is required")
	}
	if cfg.URL == "" && cfg.Loader == nil {
		return nil, errors.New("clip: url or loader is required")
	}
	cfg.applyDefaults()

	c := newHead(cfg, newLoadSession(cfg), true)
	return c, nil
}

func newHead(cfg Config, session *loadSession, owner bool) *Clip {
	c := &Clip{
		id:      uuid.New().String(),
		cfg:     cfg,
		out:     cfg.Output,
		session: session,
		owner:   owner,
		events:  newEmitter(),
		bus:     output.NewBus(),
		clock:   isync.NewClockSync(),
		volume:  *cfg.Volume,
		loop:    cfg.Loop,
	}
	c.bus.Gain().SetValue(*cfg.Volume)
	session.attachHead(c)
	return c
}

// Clone returns an independent head sharing this clip's download and
// decoded segments. Disposing the original disposes its clones.
func (c *Clip) Clone() *Clip {
	cfg := c.cfg
	c.mu.Lock()
	cfg.Volume = Float(c.volume)
	cfg.Loop = c.loop
	c.mu.Unlock()
	return newHead(cfg, c.session, false)
}

// ID returns a unique identifier for this head
func (c *Clip) ID() string { return c.id }

// URL returns the source address
func (c *Clip) URL() string { return c.cfg.URL }

// On registers a listener
func (c *Clip) On(ev Event, fn Listener) *Subscription {
	return c.events.on(ev, fn, false)
}

// Once registers a listener that runs at most once
func (c *Clip) Once(ev Event, fn Listener) *Subscription {
	return c.events.on(ev, fn, true)
}

// Buffer starts loading if needed. The result receives nil once the clip
// can play through (or has fully loaded when toCompletion is set), or the
// load error.
func (c *Clip) Buffer(toCompletion bool) <-chan error {
	res := newResult()

	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		res.resolve(newError(CodeClipDisposed, c.cfg.URL, "clip was disposed", nil))
		return res.ch
	}

	want := EventCanPlayThrough
	if toCompletion {
		want = EventLoad
	}
	res.track(c.Once(want, func(Payload) { res.resolve(nil) }))
	res.track(c.Once(EventLoadError, func(p Payload) { res.resolve(p.(Failure).Err) }))
	res.track(c.Once(EventDispose, func(Payload) {
		res.resolve(newError(CodeClipDisposed, c.cfg.URL, "clip was disposed", nil))
	}))

	c.session.start()

	if toCompletion && c.session.isLoaded() || !toCompletion && c.session.isCanPlayThrough() {
		res.resolve(nil)
	}
	return res.ch
}

// Dispose stops playback, releases the head and fires dispose. The owning
// clip also cancels the shared load and disposes its clones.
func (c *Clip) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	playing := c.playing
	c.mu.Unlock()

	if playing {
		c.Pause()
	}

	c.mu.Lock()
	c.disposed = true
	c.currentTime = 0
	c.mu.Unlock()

	c.session.detachHead(c)

	var clones []*Clip
	if c.owner {
		c.session.mu.Lock()
		clones = append(clones, c.session.heads...)
		c.session.mu.Unlock()
		c.session.reset()
	}

	c.events.fire(Signal{Kind: EventDispose})

	for _, clone := range clones {
		clone.Dispose()
	}
}

// Disposed reports whether Dispose was called
func (c *Clip) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// Paused reports whether the clip is not playing
func (c *Clip) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.playing
}

// Ended reports whether playback reached the end of the stream
func (c *Clip) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

// Loaded reports whether the whole stream has been segmented and the first
// segment is ready
func (c *Clip) Loaded() bool {
	return c.session.isLoaded()
}

// CanPlayThrough reports whether enough audio is buffered to play without stalling
func (c *Clip) CanPlayThrough() bool {
	return c.session.isCanPlayThrough()
}

// Buffered returns bytes received and the total content length
func (c *Clip) Buffered() (loaded, total int64) {
	return c.session.progress()
}

// Metadata returns the stream format once the first header was seen
func (c *Clip) Metadata() (mpeg.Metadata, bool) {
	return c.session.metadata()
}

// Duration returns the total length once every segment is decoded
func (c *Clip) Duration() (float64, bool) {
	return c.session.duration()
}

// Volume returns the clip gain
func (c *Clip) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

// SetVolume sets the clip gain
func (c *Clip) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	c.mu.Lock()
	c.volume = v
	c.mu.Unlock()
	c.bus.Gain().SetValue(v)
}

// Loop reports whether playback wraps at the end
func (c *Clip) Loop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loop
}

// SetLoop sets whether playback wraps at the end
func (c *Clip) SetLoop(loop bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loop = loop
}

// Stats is a snapshot of the clip for monitoring
type Stats struct {
	ID          string
	URL         string
	Playing     bool
	Ended       bool
	Loop        bool
	CurrentTime float64
	Duration    float64
	HasDuration bool
	Volume      float64
	Buffered    int64
	Length      int64
	Segments    int
	Ready       int
	Clock       isync.Stats
}

// Stats returns a snapshot of the clip state
func (c *Clip) Stats() Stats {
	segs := c.session.snapshot()
	ready := 0
	for _, seg := range segs {
		if seg.IsReady() {
			ready++
		}
	}
	buffered, length := c.session.progress()
	duration, ok := c.session.duration()

	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		ID:          c.id,
		URL:         c.cfg.URL,
		Playing:     c.playing,
		Ended:       c.ended,
		Loop:        c.loop,
		CurrentTime: c.positionLocked(),
		Duration:    duration,
		HasDuration: ok,
		Volume:      c.volume,
		Buffered:    buffered,
		Length:      length,
		Segments:    len(segs),
		Ready:       ready,
		Clock:       c.clock.GetStats(),
	}
}

func (c *Clip) warn(format string, args ...any) {
	args = append(args, c.cfg.URL)
	log.Printf("Warning: "+format+" (%s)", args...)
}

// result delivers the first outcome of a pending Play or Buffer
type result struct {
	ch   chan error
	once sync.Once
	mu   sync.Mutex
	subs []*Subscription
	done bool
}

func newResult() *result {
	return &result{ch: make(chan error, 1)}
}

func (r *result) track(s *Subscription) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		s.Cancel()
		return
	}
	r.subs = append(r.subs, s)
	r.mu.Unlock()
}

func (r *result) resolve(err error) {
	r.once.Do(func() {
		r.ch <- err

		r.mu.Lock()
		r.done = true
		subs := r.subs
		r.subs = nil
		r.mu.Unlock()

		for _, s := range subs {
			s.Cancel()
		}
	})
}

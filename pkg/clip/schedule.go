// ABOUTME: Scheduled, crossfaded playback across segments
// ABOUTME: Play sessions, the output-clock polling loop, progress ticks, pause and seek
package clip

import (
	"context"
	"math"
	"time"

	"github.com/Sendspin/phonograph-go/pkg/audio/output"
)

// playSession is one uninterrupted run of scheduled audio. Cancelling its
// context turns every pending advance into a no-op.
type playSession struct {
	ctx    context.Context
	cancel context.CancelFunc

	// guarded by Clip.mu
	index     int
	lastStart float64
	nextStart float64
	started   bool
	previous  output.Source
	current   output.Source
}

// activeLocked reports whether ps is still the clip's session. Must hold c.mu.
func (c *Clip) activeLocked(ps *playSession) bool {
	return c.play == ps && ps.ctx.Err() == nil
}

func (ps *playSession) sources() []output.Source {
	var out []output.Source
	if ps.previous != nil {
		out = append(out, ps.previous)
	}
	if ps.current != nil {
		out = append(out, ps.current)
	}
	return out
}

// Play starts playback. The result receives nil when playback ends, or an
// error on load failure, playback failure or disposal.
func (c *Clip) Play() <-chan error {
	res := newResult()

	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		res.resolve(newError(CodeClipDisposed, c.cfg.URL, "clip was disposed", nil))
		return res.ch
	}

	res.track(c.Once(EventEnded, func(Payload) { res.resolve(nil) }))
	res.track(c.Once(EventLoadError, func(p Payload) { res.resolve(p.(Failure).Err) }))
	res.track(c.Once(EventPlaybackError, func(p Payload) { res.resolve(p.(Failure).Err) }))
	res.track(c.Once(EventDispose, func(Payload) {
		if c.Ended() {
			return
		}
		res.resolve(newError(CodeClipDisposed, c.cfg.URL, "clip was disposed", nil))
	}))

	c.resume()
	return res.ch
}

// resume marks the clip playing and schedules audio once buffered
func (c *Clip) resume() {
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		c.warn("play() was called on a clip that was already playing")
		return
	}
	c.playing = true
	c.ended = false
	c.mu.Unlock()

	if c.session.isCanPlayThrough() {
		c.startPlayback()
		return
	}

	c.warn("play() was called before the clip could play through")
	ready := c.Buffer(false)
	go func() {
		if err := <-ready; err != nil {
			c.mu.Lock()
			if c.play == nil {
				c.playing = false
			}
			c.mu.Unlock()
			return
		}
		c.startPlayback()
	}()
}

// Pause stops all scheduled audio and records the position
func (c *Clip) Pause() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		c.warn("pause() was called on a clip that was already paused")
		return
	}

	c.currentTime = c.positionLocked()
	c.playing = false
	ps := c.play
	c.play = nil
	var sources []output.Source
	if ps != nil {
		sources = ps.sources()
	}
	c.mu.Unlock()

	if ps != nil {
		ps.cancel()
	}
	for _, src := range sources {
		src.Stop()
	}

	c.events.fire(Signal{Kind: EventPause})
}

// CurrentTime returns the playback position in seconds
func (c *Clip) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

// positionLocked computes the live position. Must hold c.mu.
func (c *Clip) positionLocked() float64 {
	if !(c.playing && c.play != nil && c.play.started) {
		return c.currentTime
	}
	pos := c.startTime + (c.out.Now() - c.ctxTimeAtStart)
	if c.loop {
		// a looping session keeps one start time across wraps
		if d, ok := c.session.duration(); ok && d > 0 && pos >= d {
			pos = math.Mod(pos, d)
		}
	}
	return pos
}

// SetCurrentTime seeks. While playing this pauses, repositions and resumes.
func (c *Clip) SetCurrentTime(t float64) {
	if t < 0 {
		t = 0
	}

	c.mu.Lock()
	playing := c.playing
	if !playing {
		c.currentTime = t
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.Pause()
	c.mu.Lock()
	c.currentTime = t
	c.mu.Unlock()
	c.resume()
}

// locate finds the segment containing position. ok is false while a
// needed segment is not ready yet.
func locate(segs []*Segment, position float64) (index int, segStart float64, ok bool) {
	t := 0.0
	for i, seg := range segs {
		d, known := seg.Duration()
		if !known || !seg.IsReady() {
			return i, t, false
		}
		if t+d > position {
			return i, t, true
		}
		t += d
	}
	return len(segs), t, true
}

func (c *Clip) retryLater() {
	time.AfterFunc(c.cfg.RetryDelay, c.startPlayback)
}

// startPlayback opens a play session at the current position
func (c *Clip) startPlayback() {
	c.mu.Lock()
	if !c.playing || c.disposed || c.play != nil {
		c.mu.Unlock()
		return
	}

	segs := c.session.snapshot()
	loaded := c.session.isLoaded()

	index, segStart, ok := locate(segs, c.currentTime)
	if !ok {
		c.mu.Unlock()
		c.warn("attempted to play content that has not yet buffered")
		c.retryLater()
		return
	}

	if index >= len(segs) {
		switch {
		case !loaded:
			c.mu.Unlock()
			c.retryLater()
			return
		case c.loop && len(segs) > 0:
			c.currentTime = 0
			index, segStart = 0, 0
		default:
			c.mu.Unlock()
			c.finish()
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	ps := &playSession{ctx: ctx, cancel: cancel, index: index + 1}
	c.play = ps
	c.startTime = c.currentTime
	c.ctxTimeAtStart = c.out.Now()
	timeOffset := c.currentTime - segStart
	seg := segs[index]
	c.mu.Unlock()

	c.events.fire(Signal{Kind: EventPlay})

	go c.runSession(ps, seg, timeOffset)
}

// runSession schedules the first source then drives the polling loops
func (c *Clip) runSession(ps *playSession, seg *Segment, timeOffset float64) {
	pcm, _, err := seg.CreatePlaybackSource(ps.ctx, timeOffset)
	if ps.ctx.Err() != nil {
		return
	}
	if err != nil {
		c.startFailed(ps, err)
		return
	}

	src, err := c.out.NewSource(pcm, c.bus)
	if err != nil {
		c.startFailed(ps, err)
		return
	}

	duration, _ := seg.Duration()

	c.mu.Lock()
	if !c.activeLocked(ps) {
		c.mu.Unlock()
		return
	}
	now := c.out.Now()
	c.ctxTimeAtStart = now
	ps.started = true
	ps.current = src
	ps.lastStart = now
	ps.nextStart = now + (duration - timeOffset)
	src.Gain().SetValueAtTime(0, ps.nextStart+c.cfg.Overlap)
	c.mu.Unlock()

	if err := src.Start(now); err != nil {
		c.startFailed(ps, err)
		return
	}

	go c.progressLoop(ps)
	c.tickLoop(ps)
}

func (c *Clip) startFailed(ps *playSession, err error) {
	c.mu.Lock()
	if c.play == ps {
		c.play = nil
		c.playing = false
	}
	c.mu.Unlock()
	ps.cancel()

	c.events.fire(Failure{Kind: EventPlaybackError, Err: asError(CodeCouldNotStartPlayback, c.cfg.URL, err)})
}

type tickResult int

const (
	tickWait tickResult = iota
	tickAdvanced
	tickEnd
	tickStop
)

// tickLoop polls the output clock and schedules each next segment once the
// last scheduled one has started
func (c *Clip) tickLoop(ps *playSession) {
	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()

	for {
		switch c.tick(ps) {
		case tickAdvanced:
			continue
		case tickEnd:
			c.endWatch(ps)
			return
		case tickStop:
			return
		}

		select {
		case <-ps.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Clip) tick(ps *playSession) tickResult {
	c.mu.Lock()
	if !c.activeLocked(ps) {
		c.mu.Unlock()
		return tickStop
	}
	if !(c.out.Now() > ps.lastStart) {
		c.mu.Unlock()
		return tickWait
	}

	segs := c.session.snapshot()
	loaded := c.session.isLoaded()

	i := ps.index
	if i >= len(segs) {
		switch {
		case !loaded:
			c.mu.Unlock()
			return tickWait
		case c.loop && len(segs) > 0:
			i %= len(segs)
		default:
			c.mu.Unlock()
			return tickEnd
		}
	}

	seg := segs[i]
	if !seg.IsReady() {
		c.mu.Unlock()
		return tickWait
	}
	ps.index = i + 1
	c.mu.Unlock()

	pcm, _, err := seg.CreatePlaybackSource(ps.ctx, 0)
	if ps.ctx.Err() != nil {
		return tickStop
	}
	var src output.Source
	if err == nil {
		src, err = c.out.NewSource(pcm, c.bus)
	}
	if err != nil {
		// audio already scheduled plays out, then the session ends
		c.events.fire(Failure{Kind: EventPlaybackError, Err: asError(CodeCouldNotCreateSource, c.cfg.URL, err)})
		return tickEnd
	}

	duration, _ := seg.Duration()
	overlap := c.cfg.Overlap

	c.mu.Lock()
	if !c.activeLocked(ps) {
		c.mu.Unlock()
		return tickStop
	}
	boundary := ps.nextStart

	if prev := ps.current; prev != nil {
		prev.Gain().SetValueAtTime(1, boundary-overlap)
		prev.Gain().LinearRampToValueAtTime(0, boundary)
	}
	src.Gain().SetValueAtTime(0, boundary)
	src.Gain().LinearRampToValueAtTime(1, boundary+overlap)

	ps.previous = ps.current
	ps.current = src
	ps.lastStart = boundary
	ps.nextStart = boundary + duration
	src.Gain().SetValueAtTime(0, ps.nextStart+overlap)
	c.mu.Unlock()

	if err := src.Start(boundary); err != nil {
		c.mu.Lock()
		if c.activeLocked(ps) {
			ps.nextStart = boundary
		}
		c.mu.Unlock()
		c.events.fire(Failure{Kind: EventPlaybackError, Err: asError(CodeCouldNotStartPlayback, c.cfg.URL, err)})
		return tickEnd
	}
	return tickAdvanced
}

// endWatch fires ended once the output clock passes the last scheduled end
func (c *Clip) endWatch(ps *playSession) {
	ticker := time.NewTicker(c.cfg.EndPollInterval)
	defer ticker.Stop()

	for {
		c.mu.Lock()
		active := c.activeLocked(ps)
		done := c.out.Now() >= ps.nextStart
		c.mu.Unlock()

		if !active {
			return
		}
		if done {
			c.finish()
			return
		}

		select {
		case <-ps.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// finish pauses, rewinds and fires ended
func (c *Clip) finish() {
	c.mu.Lock()
	playing := c.playing
	c.mu.Unlock()
	if playing {
		c.Pause()
	}

	c.mu.Lock()
	c.currentTime = 0
	c.ended = true
	c.mu.Unlock()

	c.events.fire(Signal{Kind: EventEnded})
}

// progressLoop fires progress while the session lives
func (c *Clip) progressLoop(ps *playSession) {
	ticker := time.NewTicker(c.cfg.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ps.ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if !c.activeLocked(ps) {
			c.mu.Unlock()
			return
		}
		position := c.positionLocked()
		outNow := c.out.Now()
		c.mu.Unlock()

		c.clock.Observe(c.cfg.Now(), outNow)
		c.events.fire(Progress{CurrentTime: position, Drift: c.clock.Drift()})
	}
}

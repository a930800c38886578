// ABOUTME: Shared load session that turns network bytes into segments
// ABOUTME: Owns the loader, the accumulation buffer and the canplaythrough estimate
package clip

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Sendspin/phonograph-go/pkg/audio/decode"
	"github.com/Sendspin/phonograph-go/pkg/audio/mpeg"
	"github.com/Sendspin/phonograph-go/pkg/stream"
)

// loadSession is shared by a clip and its clones. Every event it raises is
// delivered to all attached heads.
type loadSession struct {
	url         string
	loader      stream.Loader
	decoder     decode.Decoder
	chunkSize   int
	firstOffset int
	now         func() time.Time

	mu             sync.Mutex
	heads          []*Clip
	segments       []*Segment
	ref            mpeg.ReferenceHeader
	meta           mpeg.Metadata
	haveRef        bool
	buf            []byte
	loadStarted    bool
	loaded         bool
	canPlayThrough bool
	length         int64
	buffered       int64
	loadStart      time.Time
	totalLoaded    int64
	generation     uint64
	ctx            context.Context
	cancel         context.CancelFunc
}

func newLoadSession(cfg Config) *loadSession {
	return &loadSession{
		url:         cfg.URL,
		loader:      cfg.Loader,
		decoder:     cfg.Decoder,
		chunkSize:   cfg.ChunkSize,
		firstOffset: cfg.FirstSegmentOffset,
		now:         cfg.Now,
	}
}

func (s *loadSession) attachHead(c *Clip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heads = append(s.heads, c)
}

func (s *loadSession) detachHead(c *Clip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.heads {
		if h == c {
			s.heads = append(s.heads[:i:i], s.heads[i+1:]...)
			return
		}
	}
}

// notify delivers p to every head. Must not hold s.mu.
func (s *loadSession) notify(p Payload) {
	s.mu.Lock()
	heads := append([]*Clip(nil), s.heads...)
	s.mu.Unlock()

	for _, h := range heads {
		h.events.fire(p)
	}
}

func (s *loadSession) fail(kind Event, err *Error) {
	s.notify(Failure{Kind: kind, Err: err})
}

// start begins loading unless a load is already running
func (s *loadSession) start() {
	s.mu.Lock()
	if s.loadStarted {
		s.mu.Unlock()
		return
	}
	s.loadStarted = true
	s.generation++
	gen := s.generation
	s.buf = make([]byte, 0, s.chunkSize*2)
	s.loadStart = s.now()
	s.totalLoaded = 0
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	s.loader.Load(stream.Handlers{
		OnProgress: func(fraction float64, loaded, total int64) { s.onProgress(gen, fraction, loaded, total) },
		OnData:     func(data []byte) { s.onData(gen, data) },
		OnLoad:     func() { s.onLoad(gen) },
		OnError:    func(err error) { s.onError(gen, err) },
	})
}

// current reports whether callbacks from gen are still wanted. Must hold s.mu.
func (s *loadSession) current(gen uint64) bool {
	return s.loadStarted && s.generation == gen
}

func (s *loadSession) onProgress(gen uint64, fraction float64, loaded, total int64) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	s.buffered = loaded
	s.length = total
	s.mu.Unlock()

	s.notify(LoadProgress{Fraction: fraction, Loaded: loaded, Total: total})
}

type pendingAttach struct {
	prev, seg *Segment
}

func (s *loadSession) onData(gen uint64, data []byte) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}

	if !s.haveRef {
		if ref, meta, _, ok := mpeg.FindReference(data); ok {
			s.ref, s.meta, s.haveRef = ref, meta, true
			log.Printf("Stream format: %s", meta)
		}
	}

	var created []pendingAttach
	start := 0
	if s.haveRef {
		for i := range data {
			if len(s.buf)+(i-start) > s.chunkSize+mpeg.HeaderSize && mpeg.IsFrameHeader(data, i, s.ref) {
				s.buf = append(s.buf, data[start:i]...)
				created = append(created, s.drain())
				start = i
			}
		}
	}
	s.buf = append(s.buf, data[start:]...)
	s.totalLoaded += int64(len(data))
	ctx := s.ctx
	s.mu.Unlock()

	for _, p := range created {
		s.launch(ctx, p)
	}
}

// drain moves the accumulation buffer into a new segment. Must hold s.mu.
func (s *loadSession) drain() pendingAttach {
	raw := make([]byte, len(s.buf))
	copy(raw, s.buf)
	s.buf = s.buf[:0]

	firstByte := 0
	var prev *Segment
	if n := len(s.segments); n > 0 {
		prev = s.segments[n-1]
	} else {
		firstByte = s.firstOffset
	}

	seg := NewSegment(raw, firstByte, s.ref, s.meta, s.decoder)
	if !s.canPlayThrough {
		seg.OnReady(s.checkCanPlayThrough)
	}
	s.segments = append(s.segments, seg)

	return pendingAttach{prev: prev, seg: seg}
}

// launch links a new segment to its predecessor and decodes it
func (s *loadSession) launch(ctx context.Context, p pendingAttach) {
	if p.prev != nil {
		p.prev.Attach(p.seg)
	}
	go func() {
		if err := p.seg.Decode(ctx); err != nil && ctx.Err() == nil {
			s.fail(EventLoadError, asError(CodeCouldNotDecode, s.url, err))
		}
	}()
}

func (s *loadSession) onLoad(gen uint64) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}

	var final *pendingAttach
	if len(s.buf) > 0 && s.haveRef {
		p := s.drain()
		final = &p
	}

	if len(s.segments) == 0 {
		s.loadStarted = false
		s.mu.Unlock()
		s.fail(EventLoadError, newError(CodeCouldNotDecode, s.url, "no audio frames found", nil))
		return
	}

	last := s.segments[len(s.segments)-1]
	first := s.segments[0]
	ctx := s.ctx
	s.mu.Unlock()

	if final != nil {
		s.launch(ctx, *final)
	}
	last.Attach(nil)

	first.OnReady(func() {
		s.mu.Lock()
		if !s.current(gen) {
			s.mu.Unlock()
			return
		}
		fireCanPlay := !s.canPlayThrough
		s.canPlayThrough = true
		s.loaded = true
		s.mu.Unlock()

		if fireCanPlay {
			s.notify(Signal{Kind: EventCanPlayThrough})
		}
		s.notify(Signal{Kind: EventLoad})
	})
}

func (s *loadSession) onError(gen uint64, err error) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	// a later Buffer call may retry the load
	s.loadStarted = false
	s.mu.Unlock()

	log.Printf("Load failed for %s: %v", s.url, err)
	s.fail(EventLoadError, asError(CodeCouldNotLoad, s.url, err))
}

func (s *loadSession) checkCanPlayThrough() {
	s.mu.Lock()
	if s.canPlayThrough || s.length == 0 {
		s.mu.Unlock()
		return
	}

	duration, bytes := estimateSegments(s.segments)
	est := bufferEstimate{
		BufferedDuration: duration,
		BufferedBytes:    bytes,
		Length:           s.length,
		Downloaded:       s.totalLoaded,
		Elapsed:          s.now().Sub(s.loadStart),
	}
	if !est.canPlayThrough() {
		s.mu.Unlock()
		return
	}
	s.canPlayThrough = true
	s.mu.Unlock()

	s.notify(Signal{Kind: EventCanPlayThrough})
}

// reset cancels any load and forgets all segments
func (s *loadSession) reset() {
	s.mu.Lock()
	wasLoading := s.loadStarted
	s.loadStarted = false
	s.loaded = false
	s.canPlayThrough = false
	s.segments = nil
	s.buf = nil
	s.haveRef = false
	s.generation++
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if wasLoading {
		s.loader.Cancel()
	}
	if cancel != nil {
		cancel()
	}
}

func (s *loadSession) snapshot() []*Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Segment(nil), s.segments...)
}

func (s *loadSession) isLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *loadSession) isCanPlayThrough() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canPlayThrough
}

func (s *loadSession) progress() (buffered, length int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffered, s.length
}

func (s *loadSession) metadata() (mpeg.Metadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta, s.haveRef
}

// duration sums every segment once the load has completed
func (s *loadSession) duration() (float64, bool) {
	s.mu.Lock()
	loaded := s.loaded
	segs := append([]*Segment(nil), s.segments...)
	s.mu.Unlock()

	if !loaded || len(segs) == 0 {
		return 0, false
	}
	total := 0.0
	for _, seg := range segs {
		d, ok := seg.Duration()
		if !ok {
			return 0, false
		}
		total += d
	}
	return total, true
}

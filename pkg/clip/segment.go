// ABOUTME: Segment is one decode-and-schedule unit of an MP3 stream
// ABOUTME: Handles boundary retry, frame-counted duration and overlap into the next segment
package clip

import (
	"context"
	"errors"
	"sync"

	"github.com/Sendspin/phonograph-go/pkg/audio"
	"github.com/Sendspin/phonograph-go/pkg/audio/decode"
	"github.com/Sendspin/phonograph-go/pkg/audio/mpeg"
)

// SegmentState is the decode progress of a segment
type SegmentState int

const (
	SegmentPending SegmentState = iota
	SegmentDecoding
	SegmentDecoded
	SegmentFailed
)

func (s SegmentState) String() string {
	switch s {
	case SegmentPending:
		return "pending"
	case SegmentDecoding:
		return "decoding"
	case SegmentDecoded:
		return "decoded"
	case SegmentFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Segment owns one contiguous byte range of the stream. It becomes ready
// once it has decoded and its successor (or the end of the stream) is known.
type Segment struct {
	raw     []byte
	ref     mpeg.ReferenceHeader
	meta    mpeg.Metadata
	decoder decode.Decoder

	mu        sync.Mutex
	state     SegmentState
	firstByte int
	duration  float64
	attached  bool
	next      *Segment
	extended  []byte
	ready     bool
	readyCh   chan struct{}
	callbacks []func()
	err       error
}

// NewSegment creates a segment over raw, which it takes ownership of.
// Decoding starts at firstByte.
func NewSegment(raw []byte, firstByte int, ref mpeg.ReferenceHeader, meta mpeg.Metadata, dec decode.Decoder) *Segment {
	if firstByte < 0 {
		firstByte = 0
	}
	if firstByte > len(raw) {
		firstByte = len(raw)
	}
	return &Segment{
		raw:       raw,
		ref:       ref,
		meta:      meta,
		decoder:   dec,
		firstByte: firstByte,
		readyCh:   make(chan struct{}),
	}
}

// Len returns the raw byte length
func (s *Segment) Len() int {
	return len(s.raw)
}

// FirstUsableByte returns the offset decoding starts from
func (s *Segment) FirstUsableByte() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstByte
}

// State returns the decode state
func (s *Segment) State() SegmentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Duration returns the frame-counted duration once decoded
func (s *Segment) Duration() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration, s.state == SegmentDecoded
}

// IsReady reports whether a playback source can be created
func (s *Segment) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Ready is closed when the segment becomes ready
func (s *Segment) Ready() <-chan struct{} {
	return s.readyCh
}

// Err returns the permanent decode failure, if any
func (s *Segment) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// OnReady registers fn to run once when the segment becomes ready.
// If it is already ready fn runs immediately.
func (s *Segment) OnReady(fn func()) {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		fn()
		return
	}
	s.callbacks = append(s.callbacks, fn)
	s.mu.Unlock()
}

// Decode validates the segment with the decoder and counts its frames.
// A failed decode is taken to mean the range starts mid-frame: decoding
// retries from each later frame header until one succeeds or none remain.
func (s *Segment) Decode(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SegmentPending {
		s.mu.Unlock()
		return errors.New("clip: segment decode already started")
	}
	s.state = SegmentDecoding
	first := s.firstByte
	s.mu.Unlock()

	for {
		_, err := s.decoder.Decode(ctx, s.raw[first:])
		if err == nil {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return s.fail(ctxErr)
		}

		next := first + 1
		for next < len(s.raw)-1 && !mpeg.IsFrameHeader(s.raw, next, s.ref) {
			next++
		}
		if next >= len(s.raw)-1 {
			return s.fail(newError(CodeCouldNotDecode, "", "could not decode audio buffer", err))
		}

		first = next
		s.mu.Lock()
		s.firstByte = first
		s.mu.Unlock()
	}

	frames := mpeg.CountFrames(s.raw, first, s.ref, s.meta)

	s.mu.Lock()
	s.duration = mpeg.FrameDuration(frames, s.meta.SampleRate)
	s.state = SegmentDecoded
	callbacks := s.tryReady()
	s.mu.Unlock()

	runAll(callbacks)
	return nil
}

func (s *Segment) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SegmentFailed
	s.err = err
	return err
}

// Attach records the following segment, or nil if this one ends the stream
func (s *Segment) Attach(next *Segment) {
	s.mu.Lock()
	if s.attached {
		s.mu.Unlock()
		return
	}
	s.next = next
	s.attached = true
	callbacks := s.tryReady()
	s.mu.Unlock()

	runAll(callbacks)
}

// tryReady transitions to ready when both conditions hold and returns the
// callbacks to run after unlocking. Must hold s.mu.
func (s *Segment) tryReady() []func() {
	if s.ready || !s.attached || s.state != SegmentDecoded {
		return nil
	}
	s.ready = true

	usable := s.raw[s.firstByte:]
	if s.next != nil {
		// the successor's raw bytes never change after construction
		half := len(s.next.raw) / 2
		s.extended = make([]byte, 0, len(usable)+half)
		s.extended = append(s.extended, usable...)
		s.extended = append(s.extended, s.next.raw[:half]...)
	} else {
		s.extended = usable
	}

	close(s.readyCh)
	callbacks := s.callbacks
	s.callbacks = nil
	return callbacks
}

// Extended returns the bytes decoded for playback, or nil before ready
func (s *Segment) Extended() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extended
}

// CreatePlaybackSource decodes the extended bytes and drops timeOffset
// seconds from the front. It returns the buffer and the number of sample
// frames dropped.
func (s *Segment) CreatePlaybackSource(ctx context.Context, timeOffset float64) (*audio.PCM, int, error) {
	s.mu.Lock()
	ready := s.ready
	extended := s.extended
	s.mu.Unlock()

	if !ready {
		return nil, 0, ErrSegmentNotReady
	}

	pcm, err := s.decoder.Decode(ctx, extended)
	if err != nil {
		return nil, 0, err
	}

	if timeOffset <= 0 {
		return pcm, 0, nil
	}
	trimmed, skipped := pcm.TrimFront(timeOffset)
	return trimmed, skipped, nil
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

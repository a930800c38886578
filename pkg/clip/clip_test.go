// ABOUTME: Tests for clip playback scheduling
// ABOUTME: Crossfade boundaries, pause, seek, loop, end, disposal and clones
package clip

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sendspin/phonograph-go/pkg/audio/output"
)

func startedSources(out *fakeOutput, n int) func() bool {
	return func() bool {
		srcs := out.Sources()
		if len(srcs) < n {
			return false
		}
		out.mu.Lock()
		defer out.mu.Unlock()
		return srcs[n-1].started
	}
}

func assertAutomations(t *testing.T, want, got []output.Automation) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Kind, got[i].Kind, "event %d kind", i)
		assert.InDelta(t, want[i].Value, got[i].Value, 1e-9, "event %d value", i)
		assert.InDelta(t, want[i].Time, got[i].Time, 1e-9, "event %d time", i)
	}
}

func TestNewRequiresOutput(t *testing.T) {
	_, err := New(Config{URL: "a.mp3"})
	assert.Error(t, err)

	_, err = New(Config{Output: &fakeOutput{}})
	assert.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	c, err := New(Config{URL: "a.mp3", Output: &fakeOutput{}})
	require.NoError(t, err)

	assert.Equal(t, DefaultChunkSize, c.cfg.ChunkSize)
	assert.Equal(t, DefaultOverlap, c.cfg.Overlap)
	assert.Equal(t, DefaultFirstSegmentOffset, c.cfg.FirstSegmentOffset)
	assert.Equal(t, DefaultTickInterval, c.cfg.TickInterval)
	assert.Equal(t, 1.0, c.Volume())
	assert.NotNil(t, c.cfg.Loader)
	assert.NotNil(t, c.cfg.Decoder)
	assert.True(t, c.Paused())

	c, err = New(Config{URL: "a.mp3", Output: &fakeOutput{}, FirstSegmentOffset: -1})
	require.NoError(t, err)
	assert.Equal(t, 0, c.cfg.FirstSegmentOffset)
}

func TestCrossfadeAtBoundary(t *testing.T) {
	out := &fakeOutput{now: 10}
	c := loadedClip(t, out, 2.0, 3.0)
	ended := collect(c, EventEnded)

	res := c.Play()
	require.Eventually(t, startedSources(out, 1), waitFor, pollEvery)

	first := out.Sources()[0]
	assert.Equal(t, 10.0, first.StartAt())
	assert.Same(t, c.bus, first.bus)

	// the next segment is only scheduled once the output clock passes the
	// last start
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, out.Sources(), 1)

	out.SetNow(10.5)
	require.Eventually(t, startedSources(out, 2), waitFor, pollEvery)
	second := out.Sources()[1]
	assert.Equal(t, 12.0, second.StartAt())

	assertAutomations(t, []output.Automation{
		{Kind: output.SetAt, Value: 1, Time: 11.8},
		{Kind: output.RampTo, Value: 0, Time: 12},
		{Kind: output.SetAt, Value: 0, Time: 12.2},
	}, first.Gain().Automations())

	assertAutomations(t, []output.Automation{
		{Kind: output.SetAt, Value: 0, Time: 12},
		{Kind: output.RampTo, Value: 1, Time: 12.2},
		{Kind: output.SetAt, Value: 0, Time: 15.2},
	}, second.Gain().Automations())

	// halfway through the overlap both sources are at half gain
	assert.InDelta(t, 0.5, first.Gain().ValueAt(11.9), 1e-9)
	assert.InDelta(t, 0.5, second.Gain().ValueAt(12.1), 1e-9)

	// nothing left to schedule; ended waits for the last source to finish
	out.SetNow(12.5)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, ended.Len())
	assert.Len(t, out.Sources(), 2)

	out.SetNow(15.01)
	require.NoError(t, waitResult(t, res))
	assert.True(t, c.Ended())
	assert.True(t, c.Paused())
	assert.Equal(t, 0.0, c.CurrentTime())
	assert.Equal(t, 1, ended.Len())
	assert.Equal(t, 1, second.Stops())
}

func TestPauseAndResume(t *testing.T) {
	out := &fakeOutput{}
	c := loadedClip(t, out, 5.0)
	pauses := collect(c, EventPause)
	plays := collect(c, EventPlay)

	c.Play()
	require.Eventually(t, startedSources(out, 1), waitFor, pollEvery)

	// playing twice does not schedule again
	c.Play()
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, out.Sources(), 1)
	assert.Equal(t, 1, plays.Len())

	out.SetNow(1.5)
	assert.InDelta(t, 1.5, c.CurrentTime(), 1e-9)

	c.Pause()
	c.Pause()
	assert.Equal(t, 1, pauses.Len())
	assert.True(t, c.Paused())
	assert.InDelta(t, 1.5, c.CurrentTime(), 1e-9)
	assert.Equal(t, 1, out.Sources()[0].Stops())

	// time passing while paused does not move the position
	out.SetNow(4)
	assert.InDelta(t, 1.5, c.CurrentTime(), 1e-9)

	c.Play()
	require.Eventually(t, startedSources(out, 2), waitFor, pollEvery)
	resumed := out.Sources()[1]
	assert.Equal(t, 3500, resumed.buf.Len())
	assert.Equal(t, 4.0, resumed.StartAt())

	out.SetNow(5)
	assert.InDelta(t, 2.5, c.CurrentTime(), 1e-9)
	c.Pause()
}

func TestSeekIntoLaterSegment(t *testing.T) {
	out := &fakeOutput{}
	c := loadedClip(t, out, 2, 2, 2, 2)
	progress := collect(c, EventProgress)

	c.SetCurrentTime(5.0)
	assert.Equal(t, 5.0, c.CurrentTime())

	c.Play()
	require.Eventually(t, startedSources(out, 1), waitFor, pollEvery)
	assert.Equal(t, 1000, out.Sources()[0].buf.Len(), "one second left in the third segment")

	require.Eventually(t, func() bool { return progress.Len() > 0 }, waitFor, pollEvery)
	last := progress.Last().(Progress)
	assert.InDelta(t, 5.0, last.CurrentTime, 0.01)

	// seeking while playing restarts at the new position
	c.SetCurrentTime(0.5)
	require.Eventually(t, startedSources(out, 2), waitFor, pollEvery)
	assert.Equal(t, 1500, out.Sources()[1].buf.Len())
	assert.Equal(t, 1, out.Sources()[0].Stops())
	assert.False(t, c.Paused())
	assert.InDelta(t, 0.5, c.CurrentTime(), 1e-9)

	c.SetCurrentTime(-3)
	require.Eventually(t, startedSources(out, 3), waitFor, pollEvery)
	assert.Equal(t, 2000, out.Sources()[2].buf.Len())
	c.Pause()
}

func TestSeekPastEndEnds(t *testing.T) {
	out := &fakeOutput{}
	c := loadedClip(t, out, 1, 1)

	c.SetCurrentTime(10)
	err := waitResult(t, c.Play())
	assert.NoError(t, err)
	assert.True(t, c.Ended())
	assert.Empty(t, out.Sources())
}

func TestLoopWrapsToFirstSegment(t *testing.T) {
	out := &fakeOutput{}
	c := loadedClip(t, out, 1.0, 1.0)
	c.SetLoop(true)
	ended := collect(c, EventEnded)

	c.Play()
	require.Eventually(t, startedSources(out, 1), waitFor, pollEvery)

	out.SetNow(0.5)
	require.Eventually(t, startedSources(out, 2), waitFor, pollEvery)
	assert.Equal(t, 1.0, out.Sources()[1].StartAt())

	out.SetNow(1.5)
	require.Eventually(t, startedSources(out, 3), waitFor, pollEvery)
	assert.Equal(t, 2.0, out.Sources()[2].StartAt())

	out.SetNow(2.5)
	require.Eventually(t, startedSources(out, 4), waitFor, pollEvery)
	assert.Equal(t, 3.0, out.Sources()[3].StartAt())

	// position wraps with the audio
	assert.InDelta(t, 0.5, c.CurrentTime(), 1e-9)
	c.Pause()
	assert.InDelta(t, 0.5, c.CurrentTime(), 1e-9)
	c.Play()
	require.Eventually(t, startedSources(out, 5), waitFor, pollEvery)
	assert.Equal(t, 500, out.Sources()[4].buf.Len())

	assert.Equal(t, 0, ended.Len())
	c.Pause()
}

func TestPlayWaitsForCanPlayThrough(t *testing.T) {
	loader := &scriptLoader{}
	out := &fakeOutput{}
	cfg := fastConfig(out, loader, &frameDecoder{})
	cfg.ChunkSize = 4096
	c, err := New(cfg)
	require.NoError(t, err)

	c.Play()
	require.Equal(t, 1, loader.Loads(), "play starts the load")
	assert.Empty(t, out.Sources())
	assert.False(t, c.Paused())

	data := frames(40)
	loader.feed(data, 1000, int64(len(data)))
	loader.h().OnLoad()

	require.Eventually(t, startedSources(out, 1), waitFor, pollEvery)
	c.Pause()
}

func TestPlayReportsLoadError(t *testing.T) {
	loader := &scriptLoader{}
	c, err := New(fastConfig(&fakeOutput{}, loader, byteDecoder))
	require.NoError(t, err)

	res := c.Play()
	loader.h().OnError(errors.New("404"))

	err = waitResult(t, res)
	assert.True(t, errors.Is(err, ErrCouldNotLoad))
}

func TestPlaybackErrorOnSourceFailure(t *testing.T) {
	out := &fakeOutput{failNew: true}
	c := loadedClip(t, out, 1.0)
	failures := collect(c, EventPlaybackError)

	err := waitResult(t, c.Play())
	assert.True(t, errors.Is(err, ErrCouldNotStartPlayback))
	assert.Equal(t, 1, failures.Len())
	assert.True(t, c.Paused())
}

func TestLaterSourceFailureEndsSession(t *testing.T) {
	tests := []struct {
		name      string
		failNew   bool
		failStart bool
		want      error
	}{
		{"source creation fails", true, false, ErrCouldNotCreateSource},
		{"source start fails", false, true, ErrCouldNotStartPlayback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &fakeOutput{}
			c := loadedClip(t, out, 1.0, 1.0)
			failures := collect(c, EventPlaybackError)
			ended := collect(c, EventEnded)
			progress := collect(c, EventProgress)

			res := c.Play()
			require.Eventually(t, startedSources(out, 1), waitFor, pollEvery)

			out.Fail(tt.failNew, tt.failStart)
			out.SetNow(0.5)

			err := waitResult(t, res)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, 1, failures.Len())

			// the first segment still plays out
			assert.False(t, c.Paused())
			assert.Equal(t, 0, out.Sources()[0].Stops())

			out.SetNow(10)
			require.Eventually(t, func() bool { return ended.Len() == 1 }, waitFor, pollEvery)
			assert.True(t, c.Paused())
			assert.True(t, c.Ended())
			assert.Equal(t, 0.0, c.CurrentTime())

			n := progress.Len()
			time.Sleep(20 * time.Millisecond)
			assert.Equal(t, n, progress.Len(), "progress stops with the session")
		})
	}
}

func TestConfigVolume(t *testing.T) {
	c, err := New(Config{URL: "a.mp3", Output: &fakeOutput{}, Volume: Float(0)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.Volume())
	assert.Equal(t, 0.0, c.bus.Gain().Value())

	c, err = New(Config{URL: "a.mp3", Output: &fakeOutput{}, Volume: Float(0.3)})
	require.NoError(t, err)
	assert.Equal(t, 0.3, c.Volume())
	assert.Equal(t, 0.3, c.Clone().Volume())

	c, err = New(Config{URL: "a.mp3", Output: &fakeOutput{}, Volume: Float(-2)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.Volume())
}

func TestDisposeRejectsPlay(t *testing.T) {
	c := loadedClip(t, &fakeOutput{}, 1.0)
	disposals := collect(c, EventDispose)

	c.Dispose()
	c.Dispose()
	assert.True(t, c.Disposed())
	assert.Equal(t, 1, disposals.Len())

	err := waitResult(t, c.Play())
	assert.True(t, errors.Is(err, ErrDisposed))

	err = waitResult(t, c.Buffer(false))
	assert.True(t, errors.Is(err, ErrDisposed))
}

func TestDisposeWhilePlaying(t *testing.T) {
	out := &fakeOutput{}
	c := loadedClip(t, out, 5.0)

	res := c.Play()
	require.Eventually(t, startedSources(out, 1), waitFor, pollEvery)

	c.Dispose()
	err := waitResult(t, res)
	assert.True(t, errors.Is(err, ErrDisposed))
	assert.Equal(t, 1, out.Sources()[0].Stops())
	assert.Empty(t, c.session.snapshot(), "owner releases the shared segments")
}

func TestCloneSharesSession(t *testing.T) {
	out := &fakeOutput{}
	c := loadedClip(t, out, 1.0, 1.0)
	c.SetVolume(0.4)

	clone := c.Clone()
	assert.Same(t, c.session, clone.session)
	assert.NotEqual(t, c.ID(), clone.ID())
	assert.Equal(t, 0.4, clone.Volume())
	assert.NotSame(t, c.bus, clone.bus)

	clone.Play()
	require.Eventually(t, startedSources(out, 1), waitFor, pollEvery)
	assert.True(t, c.Paused(), "clones play independently")
	assert.Same(t, clone.bus, out.Sources()[0].bus)

	// disposing a clone leaves the original intact
	other := c.Clone()
	other.Dispose()
	assert.False(t, c.Disposed())
	assert.Len(t, c.session.snapshot(), 2)

	c.Dispose()
	assert.True(t, clone.Disposed())
	assert.True(t, clone.Paused())
}

func TestCloneReceivesLoadEvents(t *testing.T) {
	c, loader := newScriptedClip(t, 4096)
	clone := c.Clone()
	loads := collect(clone, EventLoad)

	done := clone.Buffer(true)
	data := frames(20)
	loader.feed(data, 1000, int64(len(data)))
	loader.h().OnLoad()

	require.NoError(t, waitResult(t, done))
	assert.Eventually(t, func() bool { return loads.Len() == 1 }, waitFor, pollEvery)
	assert.True(t, c.Loaded())
}

func TestVolumeDrivesBusGain(t *testing.T) {
	c := loadedClip(t, &fakeOutput{}, 1.0)

	c.SetVolume(0.25)
	assert.Equal(t, 0.25, c.bus.Gain().Value())

	c.SetVolume(-1)
	assert.Equal(t, 0.0, c.Volume())
}

func TestStats(t *testing.T) {
	c := loadedClip(t, &fakeOutput{}, 1.0, 2.0)

	s := c.Stats()
	assert.Equal(t, c.ID(), s.ID)
	assert.Equal(t, 2, s.Segments)
	assert.Equal(t, 2, s.Ready)
	assert.True(t, s.HasDuration)
	assert.InDelta(t, 3.0, s.Duration, 1e-9)
	assert.False(t, s.Playing)
}

// ABOUTME: Progressive gapless MP3 playback package
// ABOUTME: Segments network bytes, estimates buffering and schedules crossfaded playback
// Package clip plays MP3 streams before they have finished downloading.
//
// Incoming bytes are cut into roughly 64 KiB segments on frame boundaries.
// Each segment is decoded once to validate it and to count its frames, which
// gives an exact duration. For playback a segment decodes its bytes plus the
// first half of its successor, so the decoder never truncates the final frame,
// and consecutive sources are joined with a short gain crossfade.
//
// The scheduler polls the output clock: once the most recently scheduled
// source has started, the next segment is decoded and queued at the exact
// boundary.
//
// Example:
//
//	out, _ := output.NewOto(44100, 2)
//	c, err := clip.New(clip.Config{URL: "https://example.com/song.mp3", Output: out})
//	c.On(clip.EventProgress, func(p clip.Payload) {
//	    fmt.Println(p.(clip.Progress).CurrentTime)
//	})
//	err = <-c.Play()
package clip

// ABOUTME: Byte-stream loader package
// ABOUTME: HTTP and file sources delivering ordered chunks with progress
// Package stream loads encoded audio progressively.
//
// A Loader calls OnData for each chunk in order, OnProgress after each
// chunk, and exactly one of OnLoad or OnError. After Cancel no further
// callbacks are delivered for that load; a later Load starts over.
//
// Example:
//
//	l := stream.New("https://example.com/song.mp3", stream.HTTPConfig{})
//	l.Load(stream.Handlers{
//	    OnData: func(b []byte) { buf = append(buf, b...) },
//	    OnLoad: func() { close(done) },
//	})
package stream

// ABOUTME: MPEG audio frame parser package
// ABOUTME: Pure functions over raw MPEG Layer I/II/III byte streams
// Package mpeg parses MPEG audio frame headers.
//
// The first valid header of a stream becomes its ReferenceHeader. Every
// later frame boundary must match those raw bits exactly, which separates
// real headers from coincidental 0xFF bytes in the payload.
//
// Example:
//
//	ref, meta, off, ok := mpeg.FindReference(data)
//	if ok {
//	    frames := mpeg.CountFrames(data, off, ref, meta)
//	    seconds := mpeg.FrameDuration(frames, meta.SampleRate)
//	}
package mpeg

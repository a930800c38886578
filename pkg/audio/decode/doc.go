// ABOUTME: Audio decoder package
// ABOUTME: Provides the Decoder interface and the MP3 implementation
// Package decode turns encoded byte ranges into planar float PCM.
//
// Decoders are strict about alignment: a range that does not start on a
// frame header fails with ErrMisaligned, and callers are expected to retry
// from the next header.
//
// Example:
//
//	pcm, err := decode.NewMP3().Decode(ctx, data)
package decode

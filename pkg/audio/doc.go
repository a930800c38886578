// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, PCM types and sample conversion functions
// Package audio provides fundamental audio types shared by the decoder,
// the output mixer and the clip scheduler.
//
//   - Format: Describes audio stream format (codec, sample rate, channels, bit depth)
//   - PCM: Planar float32 decoded audio
//
// Example:
//
//	buf := audio.NewPCM(44100, 2, 1152)
//	trimmed, dropped := buf.TrimFront(0.01)
package audio

// ABOUTME: Synthetic MPEG frame builders for tests
// ABOUTME: Produces header-valid frames with zeroed payloads
// Package mpegtest builds synthetic MPEG audio streams for tests.
package mpegtest

import (
	"github.com/Sendspin/phonograph-go/pkg/audio/mpeg"
)

// FrameSpec describes one synthetic frame header
type FrameSpec struct {
	Version      mpeg.Version
	Layer        mpeg.Layer
	BitrateIndex int
	RateIndex    int
	Padding      bool
	ChannelMode  mpeg.ChannelMode
}

// Default is MPEG-1 Layer III, 128kbps, 44.1kHz, joint stereo
var Default = FrameSpec{
	Version:      mpeg.MPEG1,
	Layer:        mpeg.Layer3,
	BitrateIndex: 9,
	RateIndex:    0,
	ChannelMode:  mpeg.JointStereo,
}

// Header returns the four header bytes for spec
func Header(spec FrameSpec) []byte {
	b1 := byte(0xF0) | 0x01 // sync tail, no CRC
	if spec.Version == mpeg.MPEG1 {
		b1 |= 0x08
	}
	switch spec.Layer {
	case mpeg.Layer1:
		b1 |= 0x06
	case mpeg.Layer2:
		b1 |= 0x04
	case mpeg.Layer3:
		b1 |= 0x02
	}

	b2 := byte(spec.BitrateIndex&0x0F)<<4 | byte(spec.RateIndex&0x03)<<2
	if spec.Padding {
		b2 |= 0x02
	}
	b3 := byte(spec.ChannelMode&0x03) << 6

	return []byte{0xFF, b1, b2, b3}
}

// Reference returns the reference bits and metadata for spec
func Reference(spec FrameSpec) (mpeg.ReferenceHeader, mpeg.Metadata) {
	h := Header(spec)
	ref, _ := mpeg.ReadReference(h, 0)
	meta, _ := mpeg.DeriveMetadata(ref)
	return ref, meta
}

// Frame returns a complete frame for spec: header plus zero payload
func Frame(spec FrameSpec) []byte {
	h := Header(spec)
	_, meta := Reference(spec)
	length, err := mpeg.FrameLength(h, 0, meta)
	if err != nil || length < mpeg.HeaderSize {
		length = mpeg.HeaderSize
	}
	frame := make([]byte, length)
	copy(frame, h)
	return frame
}

// Frames returns n consecutive frames for spec
func Frames(spec FrameSpec, n int) []byte {
	frame := Frame(spec)
	out := make([]byte, 0, len(frame)*n)
	for i := 0; i < n; i++ {
		out = append(out, frame...)
	}
	return out
}

// Garbage returns n bytes that can never start or complete a frame sync
func Garbage(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(0x11 + i%0x60)
	}
	return out
}

// ABOUTME: MPEG audio frame header parsing
// ABOUTME: Validates frame headers, derives stream metadata and computes frame lengths
package mpeg

import (
	"errors"
	"fmt"
)

const (
	// HeaderSize is the byte length of an MPEG audio frame header
	HeaderSize = 4

	// SamplesPerFrame is the sample count used for frame-counted durations
	SamplesPerFrame = 1152
)

// Header bit masks
const (
	maskVersion     = 0x08 // byte 1
	maskLayer       = 0x06 // byte 1
	maskBitrate     = 0xF0 // byte 2
	maskSampleRate  = 0x0C // byte 2
	maskPadding     = 0x02 // byte 2
	maskChannelMode = 0xC0 // byte 3
	maskEmphasis    = 0x03 // byte 3
)

var (
	// ErrReservedField is returned when a header uses a reserved layer or sample rate
	ErrReservedField = errors.New("mpeg: reserved header field")

	// ErrReservedBitrate is returned when the bitrate index has no table entry
	ErrReservedBitrate = errors.New("mpeg: reserved or free-format bitrate index")
)

// Version is the MPEG audio version
type Version int

const (
	MPEG1 Version = 1
	MPEG2 Version = 2
)

func (v Version) String() string {
	switch v {
	case MPEG1:
		return "MPEG-1"
	case MPEG2:
		return "MPEG-2"
	default:
		return fmt.Sprintf("Version(%d)", int(v))
	}
}

// Layer is the MPEG audio layer
type Layer int

const (
	Layer1 Layer = 1
	Layer2 Layer = 2
	Layer3 Layer = 3
)

func (l Layer) String() string {
	switch l {
	case Layer1:
		return "Layer I"
	case Layer2:
		return "Layer II"
	case Layer3:
		return "Layer III"
	default:
		return fmt.Sprintf("Layer(%d)", int(l))
	}
}

// ChannelMode is the channel layout signalled in the header
type ChannelMode int

const (
	Stereo ChannelMode = iota
	JointStereo
	DualChannel
	Mono
)

func (c ChannelMode) String() string {
	switch c {
	case Stereo:
		return "stereo"
	case JointStereo:
		return "joint stereo"
	case DualChannel:
		return "dual channel"
	case Mono:
		return "mono"
	default:
		return fmt.Sprintf("ChannelMode(%d)", int(c))
	}
}

// Channels returns the number of output channels for the mode
func (c ChannelMode) Channels() int {
	if c == Mono {
		return 1
	}
	return 2
}

// ReferenceHeader holds the raw, unshifted bit fields of the first header
// in a stream. Later headers must match these bits exactly.
type ReferenceHeader struct {
	Version     byte
	Layer       byte
	SampleRate  byte
	ChannelMode byte
}

// Metadata describes a stream as derived from its reference header
type Metadata struct {
	Version     Version
	Layer       Layer
	SampleRate  int
	ChannelMode ChannelMode
}

func (m Metadata) String() string {
	return fmt.Sprintf("%s %s %dHz %s", m.Version, m.Layer, m.SampleRate, m.ChannelMode)
}

var bitrates = map[Version]map[Layer][15]int{
	MPEG1: {
		Layer1: {0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448},
		Layer2: {0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384},
		Layer3: {0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320},
	},
	MPEG2: {
		Layer1: {0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256},
		Layer2: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
		Layer3: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160},
	},
}

var sampleRates = [3]int{44100, 48000, 32000}

// Bitrate returns the table bitrate in kbps, or 0 for a reserved index
func Bitrate(v Version, l Layer, index int) int {
	table, ok := bitrates[v][l]
	if !ok || index < 0 || index >= len(table) {
		return 0
	}
	return table[index]
}

// hasSync reports whether a structurally valid header starts at off.
// Only the frame sync and reserved values are checked.
func hasSync(b []byte, off int) bool {
	if off < 0 || off+HeaderSize > len(b) {
		return false
	}
	if b[off] != 0xFF || b[off+1]&0xF0 != 0xF0 {
		return false
	}
	return b[off+1]&maskLayer != 0 &&
		b[off+2]&maskBitrate != maskBitrate &&
		b[off+2]&maskSampleRate != maskSampleRate &&
		b[off+3]&maskEmphasis != 0x02
}

// IsFrameHeader reports whether a frame header matching ref begins at off.
// It never panics; offsets too close to the end of b yield false.
func IsFrameHeader(b []byte, off int, ref ReferenceHeader) bool {
	if !hasSync(b, off) {
		return false
	}
	return b[off+1]&maskVersion == ref.Version &&
		b[off+1]&maskLayer == ref.Layer &&
		b[off+2]&maskSampleRate == ref.SampleRate &&
		b[off+3]&maskChannelMode == ref.ChannelMode
}

// ReadReference extracts the reference bits of the header at off
func ReadReference(b []byte, off int) (ReferenceHeader, bool) {
	if !hasSync(b, off) {
		return ReferenceHeader{}, false
	}
	return ReferenceHeader{
		Version:     b[off+1] & maskVersion,
		Layer:       b[off+1] & maskLayer,
		SampleRate:  b[off+2] & maskSampleRate,
		ChannelMode: b[off+3] & maskChannelMode,
	}, true
}

// FindReference scans b for the first header whose metadata can be derived
func FindReference(b []byte) (ReferenceHeader, Metadata, int, bool) {
	for i := 0; i+HeaderSize <= len(b); i++ {
		ref, ok := ReadReference(b, i)
		if !ok {
			continue
		}
		meta, err := DeriveMetadata(ref)
		if err != nil {
			continue
		}
		return ref, meta, i, true
	}
	return ReferenceHeader{}, Metadata{}, -1, false
}

// DeriveMetadata maps raw reference bits to semantic values
func DeriveMetadata(ref ReferenceHeader) (Metadata, error) {
	var meta Metadata

	if ref.Version>>3 == 1 {
		meta.Version = MPEG1
	} else {
		meta.Version = MPEG2
	}

	switch ref.Layer >> 1 {
	case 1:
		meta.Layer = Layer3
	case 2:
		meta.Layer = Layer2
	case 3:
		meta.Layer = Layer1
	default:
		return Metadata{}, fmt.Errorf("%w: layer bits %#x", ErrReservedField, ref.Layer)
	}

	idx := int(ref.SampleRate >> 2)
	if idx >= len(sampleRates) {
		return Metadata{}, fmt.Errorf("%w: sample rate index %d", ErrReservedField, idx)
	}
	meta.SampleRate = sampleRates[idx]
	if meta.Version == MPEG2 {
		meta.SampleRate /= 2
	}

	meta.ChannelMode = ChannelMode(ref.ChannelMode >> 6)
	return meta, nil
}

// FrameLength computes the byte length of the frame whose header is at off
func FrameLength(b []byte, off int, meta Metadata) (int, error) {
	if off < 0 || off+HeaderSize > len(b) {
		return 0, fmt.Errorf("mpeg: header at %d out of range", off)
	}
	if meta.SampleRate == 0 {
		return 0, fmt.Errorf("mpeg: metadata has no sample rate")
	}

	index := int(b[off+2]&maskBitrate) >> 4
	kbps := Bitrate(meta.Version, meta.Layer, index)
	if kbps == 0 {
		return 0, fmt.Errorf("%w: %d", ErrReservedBitrate, index)
	}
	bitrate := float64(kbps * 1000)
	sr := float64(meta.SampleRate)
	padding := float64(b[off+2]&maskPadding) / 2

	if meta.Layer == Layer1 {
		return int((12*bitrate/sr + padding) * 4), nil
	}
	return int(144*bitrate/sr + padding), nil
}

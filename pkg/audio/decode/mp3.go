// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes whole MP3 byte ranges to planar float PCM using go-mp3
package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Sendspin/phonograph-go/pkg/audio"
	"github.com/Sendspin/phonograph-go/pkg/audio/mpeg"
	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always emits 16-bit little-endian stereo
const (
	mp3Channels       = 2
	mp3BytesPerSample = 2
	mp3FrameBytes     = mp3Channels * mp3BytesPerSample
)

// MP3Decoder decodes MP3 audio. It is stateless and safe for concurrent use.
type MP3Decoder struct {
	// Lenient disables the frame boundary check on the first bytes
	Lenient bool
}

// NewMP3 creates a new MP3 decoder
func NewMP3() *MP3Decoder {
	return &MP3Decoder{}
}

// Decode converts MP3 bytes to PCM
func (d *MP3Decoder) Decode(ctx context.Context, data []byte) (*audio.PCM, error) {
	if !d.Lenient {
		if _, ok := mpeg.ReadReference(data, 0); !ok {
			return nil, ErrMisaligned
		}
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	var raw []byte
	buf := make([]byte, 8192)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := decoder.Read(buf)
		raw = append(raw, buf[:n]...)
		if err == nil {
			continue
		}
		// A truncated trailing frame ends the range rather than failing it
		if errors.Is(err, io.EOF) || (errors.Is(err, io.ErrUnexpectedEOF) && len(raw) > 0) {
			break
		}
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	frames := len(raw) / mp3FrameBytes
	if frames == 0 {
		return nil, fmt.Errorf("mp3 decode error: no samples produced")
	}

	pcm := audio.NewPCM(decoder.SampleRate(), mp3Channels, frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < mp3Channels; ch++ {
			off := i*mp3FrameBytes + ch*mp3BytesPerSample
			sample := int16(binary.LittleEndian.Uint16(raw[off:]))
			pcm.Channels[ch][i] = audio.SampleFromInt16(sample)
		}
	}

	return pcm, nil
}

// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for turning encoded byte ranges into PCM
package decode

import (
	"context"
	"errors"

	"github.com/Sendspin/phonograph-go/pkg/audio"
)

// ErrMisaligned is returned when a byte range does not begin on a frame
// boundary. Callers retry from the next candidate header.
var ErrMisaligned = errors.New("decode: data does not start on a frame boundary")

// Decoder decodes a complete encoded byte range to PCM
type Decoder interface {
	// Decode converts encoded audio data to planar PCM
	Decode(ctx context.Context, data []byte) (*audio.PCM, error)
}

// Func adapts a function to the Decoder interface
type Func func(ctx context.Context, data []byte) (*audio.PCM, error)

// Decode calls f
func (f Func) Decode(ctx context.Context, data []byte) (*audio.PCM, error) {
	return f(ctx, data)
}

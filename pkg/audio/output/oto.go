// ABOUTME: Oto-based audio output implementation
// ABOUTME: Drives a Mixer from a persistent oto player in float32 format
package output

import (
	"fmt"
	"log"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Oto plays a Mixer through the system audio device.
// oto allows one context per process, so create a single Oto and share it.
type Oto struct {
	*Mixer
	otoCtx *oto.Context
	player *oto.Player
}

// NewOto opens the audio device and starts pulling from a fresh mixer
func NewOto(sampleRate, channels int) (*Oto, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   50 * time.Millisecond,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	mixer := NewMixer(sampleRate, channels)
	player := ctx.NewPlayer(mixer)

	frameBytes := bytesPerSample * channels
	mixer.SetLatency(func() int {
		return player.BufferedSize() / frameBytes
	})

	player.Play()

	log.Printf("Audio output initialized: %dHz, %d channels", sampleRate, channels)

	return &Oto{
		Mixer:  mixer,
		otoCtx: ctx,
		player: player,
	}, nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.Mixer.Close()
	if o.player != nil {
		o.player.Pause()
		o.player.Close()
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend oto context: %w", err)
		}
	}
	return nil
}

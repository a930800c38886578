// ABOUTME: Tests for player application orchestration
// ABOUTME: Tests player creation, configuration, lifecycle and TUI commands
package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sendspin/phonograph-go/internal/ui"
	"github.com/Sendspin/phonograph-go/pkg/audio"
	"github.com/Sendspin/phonograph-go/pkg/audio/decode"
	"github.com/Sendspin/phonograph-go/pkg/audio/mpeg"
	"github.com/Sendspin/phonograph-go/pkg/audio/mpeg/mpegtest"
	"github.com/Sendspin/phonograph-go/pkg/audio/output"
	"github.com/Sendspin/phonograph-go/pkg/clip"
)

const testRate = 1000

// testDecoder accepts data that starts on a frame header and yields a
// short block of silence
var testDecoder = decode.Func(func(ctx context.Context, data []byte) (*audio.PCM, error) {
	if _, ok := mpeg.ReadReference(data, 0); !ok {
		return nil, decode.ErrMisaligned
	}
	return audio.NewPCM(testRate, 2, len(data)/100), nil
})

func writeFrames(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp3")
	if err := os.WriteFile(path, mpegtest.Frames(mpegtest.Default, n), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

// drain pulls audio from the mixer so its clock advances
func drain(ctx context.Context, m *output.Mixer) {
	buf := make([]byte, 4096)
	for ctx.Err() == nil {
		m.Read(buf)
		time.Sleep(time.Millisecond)
	}
}

func TestNewPlayer(t *testing.T) {
	player, err := New(Config{URL: "song.mp3", Volume: 80, Name: "test-player"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if player.config.URL != "song.mp3" {
		t.Errorf("expected URL song.mp3, got %s", player.config.URL)
	}
	if player.config.Name != "test-player" {
		t.Errorf("expected Name test-player, got %s", player.config.Name)
	}
	if player.config.ChunkKB != 64 {
		t.Errorf("expected default ChunkKB 64, got %d", player.config.ChunkKB)
	}
	if player.config.SampleRate != 44100 {
		t.Errorf("expected default SampleRate 44100, got %d", player.config.SampleRate)
	}
	if player.Clip() != nil {
		t.Error("clip should not exist before Run")
	}
}

func TestNewPlayerDefaultName(t *testing.T) {
	player, err := New(Config{URL: "song.mp3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if player.config.Name == "" {
		t.Error("expected a generated name")
	}
}

func TestNewPlayerValidation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"missing url", Config{}},
		{"volume too low", Config{URL: "a.mp3", Volume: -1}},
		{"volume too high", Config{URL: "a.mp3", Volume: 101}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.config); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunPlaysToCompletion(t *testing.T) {
	mixer := output.NewMixer(testRate, 2)
	defer mixer.Close()

	player, err := New(Config{
		URL:     writeFrames(t, 20),
		Volume:  50,
		Output:  mixer,
		Decoder: testDecoder,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go drain(ctx, mixer)

	if err := player.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run returned only after the timeout")
	}

	c := player.Clip()
	if !c.Ended() {
		t.Error("expected clip to have ended")
	}
	if !c.Disposed() {
		t.Error("expected clip to be disposed after Run")
	}
	if c.Volume() != 0.5 {
		t.Errorf("expected volume 0.5, got %v", c.Volume())
	}
}

func TestRunMutedVolume(t *testing.T) {
	mixer := output.NewMixer(testRate, 2)
	defer mixer.Close()

	player, err := New(Config{URL: writeFrames(t, 5), Volume: 0, Output: mixer, Decoder: testDecoder})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := player.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if v := player.Clip().Volume(); v != 0 {
		t.Errorf("expected muted clip, got volume %v", v)
	}
}

func TestRunReportsLoadFailure(t *testing.T) {
	mixer := output.NewMixer(testRate, 2)
	defer mixer.Close()

	missing := filepath.Join(t.TempDir(), "missing.mp3")
	player, err := New(Config{URL: missing, Volume: 100, Output: mixer, Decoder: testDecoder})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := player.Run(ctx); err == nil {
		t.Fatal("expected playback error for missing file")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	mixer := output.NewMixer(testRate, 2)
	defer mixer.Close()

	player, err := New(Config{URL: writeFrames(t, 2000), Volume: 100, Output: mixer, Decoder: testDecoder})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- player.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHandleCommand(t *testing.T) {
	mixer := output.NewMixer(testRate, 2)
	defer mixer.Close()

	c, err := clip.New(clip.Config{URL: "unused.mp3", Output: mixer, Decoder: testDecoder})
	if err != nil {
		t.Fatalf("failed to create clip: %v", err)
	}
	defer c.Dispose()
	player := &Player{clip: c}

	player.handleCommand(ui.Command{Kind: ui.CommandVolume, Volume: 25})
	if c.Volume() != 0.25 {
		t.Errorf("expected volume 0.25, got %v", c.Volume())
	}

	player.handleCommand(ui.Command{Kind: ui.CommandLoop, Loop: true})
	if !c.Loop() {
		t.Error("expected loop enabled")
	}

	player.handleCommand(ui.Command{Kind: ui.CommandSeek, Delta: 5})
	player.handleCommand(ui.Command{Kind: ui.CommandSeek, Delta: -20})
	if c.CurrentTime() != 0 {
		t.Errorf("expected seek clamped to 0, got %v", c.CurrentTime())
	}
}

func TestStatusFor(t *testing.T) {
	msg := statusFor(clip.Stats{Playing: true, CurrentTime: 3, Duration: 10, Buffered: 5, Length: 10})
	if msg.State != "playing" {
		t.Errorf("expected playing, got %s", msg.State)
	}
	if msg.Position == nil || *msg.Position != 3 {
		t.Error("expected position 3")
	}

	msg = statusFor(clip.Stats{Ended: true})
	if msg.State != "ended" {
		t.Errorf("expected ended, got %s", msg.State)
	}

	msg = statusFor(clip.Stats{})
	if msg.State != "paused" {
		t.Errorf("expected paused, got %s", msg.State)
	}
}

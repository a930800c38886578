// ABOUTME: Tests for the linear resampler
// ABOUTME: Covers rate conversion lengths and interpolation values
package resample

import (
	"math"
	"testing"

	"github.com/Sendspin/phonograph-go/pkg/audio"
)

func TestResampleLength(t *testing.T) {
	tests := []struct {
		name   string
		in     int
		out    int
		frames int
		want   int
	}{
		{"upsample", 44100, 48000, 44100, 48000},
		{"downsample", 48000, 44100, 48000, 44100},
		{"double", 22050, 44100, 100, 200},
		{"identity", 44100, 44100, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.in, tt.out)
			got := r.Resample(make([]float32, tt.frames))
			if len(got) != tt.want {
				t.Errorf("expected %d frames, got %d", tt.want, len(got))
			}
		})
	}
}

func TestResampleInterpolates(t *testing.T) {
	r := New(1, 2)
	got := r.Resample([]float32{0, 1, 0})

	want := []float32{0, 0.5, 1, 0.5, 0, 0}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Errorf("sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestResampleEmpty(t *testing.T) {
	if got := New(44100, 48000).Resample(nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestTo(t *testing.T) {
	pcm := audio.NewPCM(22050, 2, 100)
	if To(pcm, 22050) != pcm {
		t.Error("matching rate should return the same buffer")
	}

	out := To(pcm, 44100)
	if out.SampleRate != 44100 {
		t.Errorf("expected 44100, got %d", out.SampleRate)
	}
	if out.NumChannels() != 2 || out.Len() != 200 {
		t.Errorf("unexpected shape: %d channels, %d frames", out.NumChannels(), out.Len())
	}
}

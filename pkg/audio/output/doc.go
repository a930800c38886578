// ABOUTME: Audio output package for scheduled playback
// ABOUTME: Provides the Context capability, a software Mixer and the oto device
// Package output provides sample-accurate scheduled playback.
//
// A Context exposes an output clock and creates one-shot Sources bound to
// PCM buffers. Sources carry their own gain Param and route through a shared
// Bus, so players can crossfade consecutive buffers with gain automation.
//
// Mixer implements Context in software; Oto attaches a Mixer to the system
// audio device.
//
// Example:
//
//	out, err := output.NewOto(44100, 2)
//	src, err := out.NewSource(pcm, output.NewBus())
//	err = src.Start(out.Now() + 0.1)
package output

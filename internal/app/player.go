// ABOUTME: Main player application orchestration
// ABOUTME: Coordinates the clip, audio output, TUI, monitor and mDNS
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/Sendspin/phonograph-go/internal/discovery"
	"github.com/Sendspin/phonograph-go/internal/monitor"
	"github.com/Sendspin/phonograph-go/internal/ui"
	"github.com/Sendspin/phonograph-go/pkg/audio/decode"
	"github.com/Sendspin/phonograph-go/pkg/audio/output"
	"github.com/Sendspin/phonograph-go/pkg/clip"
)

const statusInterval = 250 * time.Millisecond

// Config holds player configuration
type Config struct {
	URL        string
	Loop       bool
	Volume     int // 0-100
	ChunkKB    int
	SampleRate int

	// MonitorPort enables the WebSocket monitor when non-zero
	MonitorPort int
	// MDNS advertises the monitor
	MDNS bool
	Name string

	UseTUI bool

	// Output and Decoder replace the audio device and MP3 decoder
	Output  output.Context
	Decoder decode.Decoder
}

// Player plays one clip from the command line
type Player struct {
	config Config

	out       output.Context
	device    *output.Oto
	clip      *clip.Clip
	monitor   *monitor.Server
	discovery *discovery.Manager
	tuiProg   *tea.Program
	control   *ui.Control
}

// New validates config and creates a player. Devices are opened by Run.
func New(config Config) (*Player, error) {
	if config.URL == "" {
		return nil, errors.New("no url or file given")
	}
	if config.Volume < 0 || config.Volume > 100 {
		return nil, fmt.Errorf("volume %d out of range 0-100", config.Volume)
	}
	if config.ChunkKB <= 0 {
		config.ChunkKB = clip.DefaultChunkSize / 1024
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 44100
	}
	if config.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		config.Name = fmt.Sprintf("%s-phonograph", hostname)
	}

	return &Player{config: config}, nil
}

// Run plays until the clip ends (without a TUI), the user quits, or ctx
// is cancelled
func (p *Player) Run(ctx context.Context) error {
	if err := p.open(); err != nil {
		return err
	}
	defer p.close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		if p.tuiProg == nil {
			defer cancel()
		}
		return p.playback(gctx)
	})

	g.Go(func() error {
		p.statusLoop(gctx)
		return nil
	})

	if p.control != nil {
		g.Go(func() error {
			p.controlLoop(gctx, cancel)
			return nil
		})
	}

	if p.tuiProg != nil {
		g.Go(func() error {
			defer cancel()
			if _, err := p.tuiProg.Run(); err != nil {
				return fmt.Errorf("TUI failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			p.tuiProg.Quit()
			return nil
		})
	}

	if p.monitor != nil {
		g.Go(func() error {
			return p.monitor.ListenAndServe(gctx)
		})
	}

	if p.discovery != nil {
		g.Go(func() error {
			p.logPeers(gctx)
			return nil
		})
	}

	return g.Wait()
}

// open creates the output, clip and optional services
func (p *Player) open() error {
	p.out = p.config.Output
	if p.out == nil {
		device, err := output.NewOto(p.config.SampleRate, 2)
		if err != nil {
			return fmt.Errorf("failed to open audio output: %w", err)
		}
		p.device = device
		p.out = device
	}

	c, err := clip.New(clip.Config{
		URL:       p.config.URL,
		Output:    p.out,
		Decoder:   p.config.Decoder,
		Loop:      p.config.Loop,
		Volume:    clip.Float(float64(p.config.Volume) / 100),
		ChunkSize: p.config.ChunkKB * 1024,
	})
	if err != nil {
		return fmt.Errorf("failed to create clip: %w", err)
	}
	p.clip = c
	p.watchEvents()

	if p.config.UseTUI {
		p.control = ui.NewControl()
		prog, err := ui.Run(p.control, p.config.URL, p.config.Volume)
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		p.tuiProg = prog
	}

	if p.config.MonitorPort > 0 {
		p.monitor = monitor.New(monitor.Config{Port: p.config.MonitorPort})
		p.monitor.Watch(c)

		if p.config.MDNS {
			p.discovery = discovery.NewManager(discovery.Config{
				ServiceName: p.config.Name,
				Port:        p.config.MonitorPort,
				Path:        monitor.DefaultPath,
			})
			if err := p.discovery.Advertise(); err != nil {
				log.Printf("Failed to start mDNS advertisement: %v", err)
			} else if err := p.discovery.Browse(); err != nil {
				log.Printf("Failed to start mDNS browsing: %v", err)
			}
		}
	}

	return nil
}

func (p *Player) close() {
	if p.monitor != nil {
		p.monitor.Unwatch(p.clip)
	}
	if p.discovery != nil {
		p.discovery.Stop()
	}
	if p.clip != nil {
		p.clip.Dispose()
	}
	if p.device != nil {
		if err := p.device.Close(); err != nil {
			log.Printf("Error closing audio output: %v", err)
		}
	}
}

// watchEvents logs clip milestones and forwards failures to the TUI
func (p *Player) watchEvents() {
	c := p.clip
	c.Once(clip.EventCanPlayThrough, func(clip.Payload) {
		if meta, ok := c.Metadata(); ok {
			log.Printf("Ready to play: %s", meta)
			p.send(ui.StatusMsg{Format: meta.String()})
		}
	})
	c.On(clip.EventLoad, func(clip.Payload) {
		loaded, _ := c.Buffered()
		log.Printf("Loaded %d bytes from %s", loaded, c.URL())
	})
	report := func(pl clip.Payload) {
		f := pl.(clip.Failure)
		log.Printf("%s: %v", f.Kind, f.Err)
		p.send(ui.StatusMsg{Error: f.Err.Error()})
	}
	c.On(clip.EventLoadError, report)
	c.On(clip.EventPlaybackError, report)
	c.On(clip.EventEnded, func(clip.Payload) {
		log.Printf("Playback ended")
	})
}

// playback starts the clip and waits for it to end
func (p *Player) playback(ctx context.Context) error {
	res := p.clip.Play()

	select {
	case err := <-res:
		if err != nil {
			if p.tuiProg != nil {
				// the TUI shows the error; keep running until the user quits
				<-ctx.Done()
				return nil
			}
			return fmt.Errorf("playback failed: %w", err)
		}
		if p.tuiProg != nil {
			<-ctx.Done()
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// statusLoop periodically pushes clip state to the TUI
func (p *Player) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.send(statusFor(p.clip.Stats()))
		case <-ctx.Done():
			return
		}
	}
}

func statusFor(st clip.Stats) ui.StatusMsg {
	state := "paused"
	switch {
	case st.Playing:
		state = "playing"
	case st.Ended:
		state = "ended"
	}
	position := st.CurrentTime
	quality := st.Clock.Quality

	return ui.StatusMsg{
		State:       state,
		Position:    &position,
		Duration:    st.Duration,
		Buffered:    st.Buffered,
		Length:      st.Length,
		Segments:    st.Segments,
		Ready:       st.Ready,
		SyncQuality: &quality,
		DriftPPM:    st.Clock.Drift * 1e6,
	}
}

func (p *Player) send(msg ui.StatusMsg) {
	if p.tuiProg != nil {
		p.tuiProg.Send(msg)
	}
}

// controlLoop applies TUI commands to the clip
func (p *Player) controlLoop(ctx context.Context, quit context.CancelFunc) {
	for {
		select {
		case cmd := <-p.control.Commands:
			p.handleCommand(cmd)
		case <-p.control.Quit:
			log.Printf("Received quit signal from TUI")
			quit()
			return
		case <-ctx.Done():
			return
		}
	}
}

func (p *Player) handleCommand(cmd ui.Command) {
	c := p.clip
	switch cmd.Kind {
	case ui.CommandToggle:
		if c.Paused() {
			res := c.Play()
			go func() {
				if err := <-res; err != nil {
					log.Printf("Play failed: %v", err)
				}
			}()
		} else {
			c.Pause()
		}
	case ui.CommandSeek:
		target := c.CurrentTime() + cmd.Delta
		if d, ok := c.Duration(); ok && target > d {
			target = d
		}
		if target < 0 {
			target = 0
		}
		c.SetCurrentTime(target)
	case ui.CommandVolume:
		c.SetVolume(float64(cmd.Volume) / 100)
	case ui.CommandLoop:
		c.SetLoop(cmd.Loop)
		log.Printf("Loop: %v", cmd.Loop)
	}
}

// logPeers reports other monitors seen on the network
func (p *Player) logPeers(ctx context.Context) {
	for {
		select {
		case peer := <-p.discovery.Peers():
			log.Printf("Peer monitor: %s (%s)", peer.Name, peer.Address())
		case <-ctx.Done():
			return
		}
	}
}

// Clip returns the clip being played, or nil before Run
func (p *Player) Clip() *clip.Clip {
	return p.clip
}

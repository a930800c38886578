// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Defines clip display state, key handling and rendering
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Sendspin/phonograph-go/internal/sync"
)

// SeekStep is how far the arrow keys move the playhead
const SeekStep = 5.0

// Model represents the TUI state
type Model struct {
	// Source
	url    string
	format string

	// Playback
	state       string
	currentTime float64
	duration    float64
	volume      int
	loop        bool

	// Loading
	buffered int64
	length   int64
	segments int
	ready    int

	// Sync
	syncQuality sync.Quality
	driftPPM    float64

	lastError string
	showDebug bool
	quitting  bool

	control *Control

	// Dimensions
	width  int
	height int
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping playback...\n"
	}
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Phonograph"))
	b.WriteString("\n\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-9s", name+":")))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Source", truncate(m.url, 60))
	if m.format != "" {
		field("Format", m.format)
	}
	field("State", m.stateText())
	field("Position", m.positionText())
	field("Volume", fmt.Sprintf("[%s] %d%%", renderBar(m.volume, 100, 10), m.volume))
	field("Loaded", m.loadedText())

	if m.showDebug {
		field("Segments", fmt.Sprintf("%d/%d ready", m.ready, m.segments))
		field("Clock", fmt.Sprintf("%s (drift %+.1fppm)", m.syncQuality, m.driftPPM))
	}

	if m.lastError != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(truncate(m.lastError, 70)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space:Play/Pause  ←/→:Seek  ↑/↓:Volume  l:Loop  d:Debug  q:Quit"))
	return b.String()
}

func (m Model) stateText() string {
	s := m.state
	if s == "" {
		s = "idle"
	}
	if m.loop {
		s += " (loop)"
	}
	return s
}

func (m Model) positionText() string {
	if m.duration <= 0 {
		return formatTime(m.currentTime)
	}
	width := 30
	filled := int(m.currentTime / m.duration * float64(width))
	if filled > width {
		filled = width
	}
	return fmt.Sprintf("%s %s %s",
		formatTime(m.currentTime), renderBar(filled, width, width), formatTime(m.duration))
}

func (m Model) loadedText() string {
	if m.length <= 0 {
		return fmt.Sprintf("%d KiB", m.buffered/1024)
	}
	return fmt.Sprintf("%d%% of %d KiB", m.buffered*100/m.length, m.length/1024)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.control.quit()
		return m, tea.Quit
	case " ":
		m.control.send(Command{Kind: CommandToggle})
	case "left":
		m.control.send(Command{Kind: CommandSeek, Delta: -SeekStep})
	case "right":
		m.control.send(Command{Kind: CommandSeek, Delta: SeekStep})
	case "up":
		if m.volume < 100 {
			m.volume += 5
			if m.volume > 100 {
				m.volume = 100
			}
			m.control.send(Command{Kind: CommandVolume, Volume: m.volume})
		}
	case "down":
		if m.volume > 0 {
			m.volume -= 5
			if m.volume < 0 {
				m.volume = 0
			}
			m.control.send(Command{Kind: CommandVolume, Volume: m.volume})
		}
	case "l":
		m.loop = !m.loop
		m.control.send(Command{Kind: CommandLoop, Loop: m.loop})
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.URL != "" {
		m.url = msg.URL
	}
	if msg.Format != "" {
		m.format = msg.Format
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Position != nil {
		m.currentTime = *msg.Position
	}
	if msg.Duration > 0 {
		m.duration = msg.Duration
	}
	if msg.Volume != nil {
		m.volume = *msg.Volume
	}
	if msg.Loop != nil {
		m.loop = *msg.Loop
	}
	if msg.Length > 0 || msg.Buffered > 0 {
		m.buffered = msg.Buffered
		m.length = msg.Length
	}
	if msg.Segments > 0 {
		m.segments = msg.Segments
		m.ready = msg.Ready
	}
	if msg.SyncQuality != nil {
		m.syncQuality = *msg.SyncQuality
		m.driftPPM = msg.DriftPPM
	}
	if msg.Error != "" {
		m.lastError = msg.Error
	}
}

// StatusMsg updates TUI state. Zero values leave fields unchanged; pointer
// fields distinguish an explicit zero.
type StatusMsg struct {
	URL         string
	Format      string
	State       string
	Position    *float64
	Duration    float64
	Volume      *int
	Loop        *bool
	Buffered    int64
	Length      int64
	Segments    int
	Ready       int
	SyncQuality *sync.Quality
	DriftPPM    float64
	Error       string
}

// Utility functions
func renderBar(value, max, width int) string {
	if max <= 0 {
		return strings.Repeat("░", width)
	}
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func formatTime(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

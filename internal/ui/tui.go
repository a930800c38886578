// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and carries key commands to the player
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// CommandKind identifies a user command
type CommandKind int

const (
	CommandToggle CommandKind = iota
	CommandSeek
	CommandVolume
	CommandLoop
)

// Command is a playback request from the TUI
type Command struct {
	Kind   CommandKind
	Delta  float64 // seconds, for CommandSeek
	Volume int     // percent, for CommandVolume
	Loop   bool    // for CommandLoop
}

// Control holds channels for player control communication
type Control struct {
	Commands chan Command
	Quit     chan struct{}
}

// NewControl creates a new control handler
func NewControl() *Control {
	return &Control{
		Commands: make(chan Command, 10),
		Quit:     make(chan struct{}, 1),
	}
}

// send queues cmd without blocking the UI
func (c *Control) send(cmd Command) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
	}
}

func (c *Control) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Control, url string, volume int) Model {
	return Model{
		url:     url,
		volume:  volume,
		state:   "loading",
		control: ctrl,
	}
}

// Run creates the TUI program. The caller runs it.
func Run(ctrl *Control, url string, volume int) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl, url, volume), tea.WithAltScreen())
	return p, nil
}

// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the stream monitor
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Control carries requests from the TUI back to the CLI
type Control struct {
	Quit chan struct{}
}

// NewControl creates a new control handle
func NewControl() *Control {
	return &Control{
		Quit: make(chan struct{}, 1),
	}
}

func (c *Control) signalQuit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(info StreamInfo, ctrl *Control) Model {
	return Model{
		info:    info,
		state:   "connecting",
		control: ctrl,
		started: time.Now(),
	}
}

// Run creates the TUI program. The caller starts it with Run on the
// returned program and feeds it StatusMsg values with Send.
func Run(info StreamInfo, ctrl *Control) *tea.Program {
	return tea.NewProgram(NewModel(info, ctrl), tea.WithAltScreen())
}

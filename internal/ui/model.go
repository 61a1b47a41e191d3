// ABOUTME: Bubbletea model for the stream monitor TUI
// ABOUTME: Shows stream parameters, buffer exchange counters and errors
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Resonate-Protocol/cras-go/internal/version"
)

// StreamInfo is the static description of the monitored stream
type StreamInfo struct {
	StreamID  uint32
	Direction string
	Format    string
	BlockSize uint32
	Rate      int
	Source    string
	Output    string
}

// StatusMsg updates TUI state. Zero fields leave the current value alone.
type StatusMsg struct {
	State      string
	Buffers    uint64
	Frames     uint64
	Requests   uint64
	Errors     int
	LastError  string
	Goroutines int
	MemAlloc   uint64
}

// Model represents the TUI state
type Model struct {
	info  StreamInfo
	state string

	// Exchange
	buffers  uint64
	frames   uint64
	requests uint64

	// Failures
	errors    int
	lastError string

	// Debug
	showDebug  bool
	goroutines int
	memAlloc   uint64

	started  time.Time
	quitting bool
	control  *Control

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

type tickMsg time.Time

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tickEvery()
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Closing stream...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", version.Product, version.Version)))
	b.WriteString("\n\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-10s", name+":")))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	field("Stream", fmt.Sprintf("#%d %s", m.info.StreamID, m.info.Direction))
	field("Format", fmt.Sprintf("%s, %d frames/period", m.info.Format, m.info.BlockSize))
	if m.info.Source != "" {
		field("Source", truncate(m.info.Source, 60))
	}
	if m.info.Output != "" {
		field("Output", truncate(m.info.Output, 60))
	}
	field("State", m.state)
	b.WriteString("\n")

	field("Buffers", fmt.Sprintf("%d", m.buffers))
	field("Frames", fmt.Sprintf("%d (%s)", m.frames, m.position()))
	field("Requests", fmt.Sprintf("%d", m.requests))
	if m.errors > 0 {
		field("Errors", errorStyle.Render(fmt.Sprintf("%d  %s", m.errors, truncate(m.lastError, 50))))
	}

	if m.showDebug {
		b.WriteString("\n")
		field("Uptime", time.Since(m.started).Round(time.Second).String())
		field("Routines", fmt.Sprintf("%d", m.goroutines))
		field("Heap", fmt.Sprintf("%.1f MiB", float64(m.memAlloc)/(1<<20)))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("d:Debug  q:Quit"))
	return b.String()
}

// position converts committed frames to playback time
func (m Model) position() string {
	if m.info.Rate <= 0 {
		return "-"
	}
	d := time.Duration(m.frames) * time.Second / time.Duration(m.info.Rate)
	return d.Round(10 * time.Millisecond).String()
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.control.signalQuit()
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Buffers != 0 {
		m.buffers = msg.Buffers
	}
	if msg.Frames != 0 {
		m.frames = msg.Frames
	}
	if msg.Requests != 0 {
		m.requests = msg.Requests
	}
	if msg.Errors != 0 {
		m.errors = msg.Errors
	}
	if msg.LastError != "" {
		m.lastError = msg.LastError
	}
	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
	}
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

// ABOUTME: Bubbletea model for the receiver TUI
// ABOUTME: Shows listeners, stream buffers and sender targets with master volume keys
package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/vbancast/vbancast-go/internal/protocol"
)

const (
	gainStep = 0.05
	maxGain  = 2.0
)

// StatusMsg carries a stats snapshot into the model
type StatusMsg protocol.Stats

// Model represents the TUI state
type Model struct {
	title string
	stats protocol.Stats

	// Playback
	gain      float64
	muted     bool
	unmuteTo  float64
	gainCtrl  GainControl
	showDebug bool

	quitting bool
	quitChan chan struct{}

	// Dimensions
	width  int
	height int
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// NewModel creates a new TUI model
func NewModel(title string, gain GainControl, quitChan chan struct{}) Model {
	m := Model{
		title:    title,
		gain:     1.0,
		gainCtrl: gain,
		quitChan: quitChan,
	}
	if gain != nil {
		m.gain = gain.Gain()
	}
	return m
}

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
		return "Shutting down...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n")
	b.WriteString(m.renderVolume())
	b.WriteString(m.renderListeners())
	b.WriteString(m.renderStreams())
	b.WriteString(m.renderTargets())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓:Volume  m:Mute  d:Debug  q:Quit"))
	return b.String()
}

func (m Model) renderVolume() string {
	pct := int(m.gain*100 + 0.5)
	mute := ""
	if m.muted {
		mute = warnStyle.Render(" (muted)")
	}
	return fmt.Sprintf("%s [%s] %d%%%s\n\n",
		headerStyle.Render("Volume:"), renderBar(pct, int(maxGain*100), 20), pct, mute)
}

func (m Model) renderListeners() string {
	if len(m.stats.Listeners) == 0 {
		return headerStyle.Render("Ports") + "\n" + valueStyle.Render("  Not listening") + "\n\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Ports"))
	b.WriteString("\n")
	for _, l := range m.stats.Listeners {
		b.WriteString(fmt.Sprintf("  :%-5d ", l.Port))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%s  pkts %d  matched %d", strings.Join(l.Endpoints, ", "), l.Packets, l.Matched)))
		if l.Rejected > 0 {
			b.WriteString(warnStyle.Render(fmt.Sprintf("  rejected %d", l.Rejected)))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderStreams() string {
	if len(m.stats.Streams) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Streams (%d)", len(m.stats.Streams))))
	b.WriteString("\n")
	for _, s := range m.stats.Streams {
		capMs := s.Capacity * 10
		b.WriteString(fmt.Sprintf("  %-16s [%s] %3d/%dms", truncate(s.Name, 16), renderBar(s.BufferedMs, capMs, 10), s.BufferedMs, capMs))
		if s.Dropped > 0 || s.Underruns > 0 {
			b.WriteString(warnStyle.Render(fmt.Sprintf("  drops %d  underruns %d", s.Dropped, s.Underruns)))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderTargets() string {
	if len(m.stats.Targets) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Sending (%d)", len(m.stats.Targets))))
	b.WriteString("\n")
	for _, t := range m.stats.Targets {
		b.WriteString(fmt.Sprintf("  %-16s -> %s ", truncate(t.Name, 16), t.Addr))
		b.WriteString(valueStyle.Render(fmt.Sprintf("pkts %d  %s", t.Packets, formatBytes(t.Bytes))))
		if t.Errors > 0 {
			b.WriteString(warnStyle.Render(fmt.Sprintf("  errors %d", t.Errors)))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderDebug() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Debug"))
	b.WriteString("\n")
	for _, s := range m.stats.Streams {
		b.WriteString(valueStyle.Render(fmt.Sprintf("  %s id=%s cap=%d chunks", s.Name, s.ID, s.Capacity)))
		b.WriteString("\n")
	}
	for _, t := range m.stats.Targets {
		b.WriteString(valueStyle.Render(fmt.Sprintf("  %s counter=%d", t.Name, t.FrameCounter)))
		b.WriteString("\n")
	}
	return b.String()
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		select {
		case m.quitChan <- struct{}{}:
		default:
		}
		return m, tea.Quit
	case "up":
		m.muted = false
		m.setGain(m.gain + gainStep)
	case "down":
		m.muted = false
		m.setGain(m.gain - gainStep)
	case "m":
		if m.muted {
			m.muted = false
			m.setGain(m.unmuteTo)
		} else {
			m.unmuteTo = m.gain
			m.muted = true
			m.setGain(0)
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m *Model) setGain(g float64) {
	// Round to whole steps so repeated presses land on clean values
	g = float64(int(g/gainStep+0.5)) * gainStep
	if g < 0 {
		g = 0
	}
	if g > maxGain {
		g = maxGain
	}
	m.gain = g
	if m.gainCtrl != nil {
		m.gainCtrl.SetGain(g)
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	m.stats = protocol.Stats(msg)
	if !m.muted && m.gainCtrl != nil {
		m.gain = msg.Gain
	}
}

// Utility functions
func renderBar(value, max, width int) string {
	if max <= 0 {
		max = 1
	}
	filled := (value * width) / max
	if filled > width {
		filled = width
	}
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

func formatBytes(n uint64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

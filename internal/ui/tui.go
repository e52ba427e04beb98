// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and feeds it stats updates
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/vbancast/vbancast-go/internal/protocol"
)

// GainControl adjusts the master gain from key presses
type GainControl interface {
	SetGain(g float64)
	Gain() float64
}

// TUI runs the receiver display
type TUI struct {
	program  *tea.Program
	updates  chan protocol.Stats
	quitChan chan struct{}
}

// New creates a TUI titled title. gain may be nil for a read-only display.
func New(title string, gain GainControl) *TUI {
	t := &TUI{
		updates:  make(chan protocol.Stats, 10),
		quitChan: make(chan struct{}, 1),
	}
	t.program = tea.NewProgram(NewModel(title, gain, t.quitChan), tea.WithAltScreen())
	return t
}

// Run blocks until the user quits or Stop is called
func (t *TUI) Run() error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case stats := <-t.updates:
				t.program.Send(StatusMsg(stats))
			case <-done:
				return
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends stats to the display without blocking
func (t *TUI) Update(stats protocol.Stats) {
	select {
	case t.updates <- stats:
	default:
	}
}

// QuitChan is signalled when the user asks to quit
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}

// Stop ends the program
func (t *TUI) Stop() {
	t.program.Quit()
}

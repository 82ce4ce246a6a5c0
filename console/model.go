// Package console is the operator-facing control surface of a capture: it
// turns key presses into start/stop signals, shows live capture progress, and
// renders the end-of-capture status card.
package console

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teranos/posecam"
)

// StatusSource reports capture progress. *posecam.Operator implements it.
type StatusSource interface {
	Status() posecam.CaptureStatus
}

type tickMsg time.Time

// doneMsg tells the model the capture has ended.
type doneMsg struct{}

// Model is the bubbletea model of the capture console.
//
// Enter starts capturing, q stops it. Ctrl+C stops and leaves the console
// immediately; so does q before the capture was started.
type Model struct {
	signals *posecam.Signals
	source  StatusSource
	refresh time.Duration

	status   posecam.CaptureStatus
	aborted  bool
	finished bool
}

// NewModel creates a console model that polls source every refresh.
func NewModel(signals *posecam.Signals, source StatusSource, refresh time.Duration) Model {
	return Model{
		signals: signals,
		source:  source,
		refresh: refresh,
	}
}

// Aborted reports whether the user left before a capture was started.
func (m Model) Aborted() bool { return m.aborted }

// Status returns the last polled capture status.
func (m Model) Status() posecam.CaptureStatus { return m.status }

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			m.signals.Start()
		case tea.KeyCtrlC:
			m.stop()
			return m, tea.Quit
		case tea.KeyRunes:
			if string(msg.Runes) == "q" {
				m.stop()
				if m.aborted {
					return m, tea.Quit
				}
			}
		}
		return m, nil

	case tickMsg:
		m.status = m.source.Status()
		return m, m.tick()

	case doneMsg:
		m.finished = true
		m.status = m.source.Status()
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) stop() {
	m.signals.RequestStop()
	if !m.signals.Started() {
		m.aborted = true
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	s := m.status

	b.WriteString("posecam")
	if s.SessionID != "" {
		b.WriteString(" " + s.SessionID)
	}
	b.WriteString("\n\n")

	switch {
	case m.finished:
		b.WriteString("Capture finished.\n")
	case m.aborted:
		b.WriteString("Capture aborted.\n")
	case s.Stopping:
		b.WriteString("Capturing stopped. Exiting.\n")
	case s.Started:
		b.WriteString("Program started capturing.\n")
	default:
		b.WriteString("Press ENTER key to start, q to stop\n")
	}

	fmt.Fprintf(&b, "session:  %s\n", s.State)
	fmt.Fprintf(&b, "frames:   %d (%d sampled)\n", s.Loop.Frames, s.Loop.Sampled)
	fmt.Fprintf(&b, "poses:    %d\n", s.Poses)
	fmt.Fprintf(&b, "stumbles: %d\n", s.Stumbles)
	if s.Loop.LastTime != 0 {
		fmt.Fprintf(&b, "time:     %.3fs\n", float64(s.Loop.LastTime)/1e9)
	}
	return b.String()
}

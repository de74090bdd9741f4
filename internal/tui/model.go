// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"audioviz/internal/audio"
)

// Spectrum is the presentation's feed: Bands advances its smoothing and
// Magnitudes returns the spectrum that Bands was computed from.
type Spectrum interface {
	Bands() []float64
	Magnitudes() []float64
}

// Capture is the part of the pipeline the status line reads.
type Capture interface {
	State() audio.State
	Frames() uint64
	Err() error
	Gate() *audio.Gate
}

type keyMap struct {
	Next key.Binding
	Prev key.Binding
	Page key.Binding
	Gate key.Binding
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Page, k.Gate, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultKeys = keyMap{
	Next: key.NewBinding(key.WithKeys("right", "l", "tab"), key.WithHelp("→", "next page")),
	Prev: key.NewBinding(key.WithKeys("left", "h", "shift+tab"), key.WithHelp("←", "previous page")),
	Page: key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "page")),
	Gate: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "noise gate")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
}

type tickMsg time.Time

// Model is the Bubble Tea model of the live display. It pulls a new frame
// from its Spectrum on every tick.
type Model struct {
	spectrum Spectrum
	capture  Capture
	pager    *Pager
	interval time.Duration
	keys     keyMap
	help     help.Model

	width, height int
	bands         []float64
	magnitudes    []float64
}

// NewModel returns a model refreshing every interval. capture may be nil.
func NewModel(spectrum Spectrum, capture Capture, pager *Pager, interval time.Duration) Model {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return Model{
		spectrum: spectrum,
		capture:  capture,
		pager:    pager,
		interval: interval,
		keys:     defaultKeys,
		help:     help.New(),
		width:    80,
		height:   24,
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the refresh tick.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles ticks, resizes and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.bands = m.spectrum.Bands()
		m.magnitudes = m.spectrum.Magnitudes()
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Next):
			m.pager.Next()
		case key.Matches(msg, m.keys.Prev):
			m.pager.Prev()
		case key.Matches(msg, m.keys.Page):
			_ = m.pager.Select(int(msg.String()[0] - '1'))
		case key.Matches(msg, m.keys.Gate):
			if m.capture != nil {
				m.capture.Gate().Toggle()
			}
		}
	}
	return m, nil
}

// View renders the title, the active page, the status line and the help.
func (m Model) View() string {
	_, name := m.pager.Active()
	title := titleStyle.Render("audioviz · " + name)

	pageHeight := max(m.height-5, 1)
	body := barStyle.Render(m.pager.Render(m.bands, m.magnitudes, m.width, pageHeight))

	return fmt.Sprintf("%s\n\n%s\n\n%s\n%s", title, body, m.statusLine(), m.help.View(m.keys))
}

func (m Model) statusLine() string {
	if m.capture == nil {
		return infoStyle.Render("no capture")
	}

	var sb strings.Builder
	switch st := m.capture.State(); st {
	case audio.StateRecording:
		sb.WriteString(highlightStyle.Render(st.String()))
	case audio.StateError:
		sb.WriteString(errorStyle.Render(st.String()))
	default:
		sb.WriteString(warnStyle.Render(st.String()))
	}

	gate := "off"
	if g := m.capture.Gate(); g.Enabled() {
		gate = fmt.Sprintf("on @ %.2f", g.Threshold())
	}
	sb.WriteString(infoStyle.Render(fmt.Sprintf("  frames %d  gate %s", m.capture.Frames(), gate)))

	if err := m.capture.Err(); err != nil {
		sb.WriteString("  ")
		sb.WriteString(errorStyle.Render(err.Error()))
	}
	return sb.String()
}

// Run shows the model full screen until the user quits or ctx is done.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"audioviz/internal/audio"
)

type fakeSpectrum struct {
	calls int
}

func (f *fakeSpectrum) Bands() []float64 {
	f.calls++
	return []float64{0.2, 0.8}
}

func (f *fakeSpectrum) Magnitudes() []float64 { return []float64{0, 1, 2} }

type fakeCapture struct {
	state audio.State
	gate  audio.Gate
	err   error
}

func (f *fakeCapture) State() audio.State { return f.state }
func (f *fakeCapture) Frames() uint64     { return 42 }
func (f *fakeCapture) Err() error         { return f.err }
func (f *fakeCapture) Gate() *audio.Gate  { return &f.gate }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelTickPullsFrame(t *testing.T) {
	spec := &fakeSpectrum{}
	m := NewModel(spec, nil, NewPager(NewPages()), 10*time.Millisecond)

	next, cmd := m.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick did not schedule the next tick")
	}
	got := next.(Model)
	if spec.calls != 1 || len(got.bands) != 2 || len(got.magnitudes) != 3 {
		t.Errorf("after tick: calls %d, bands %v, magnitudes %v", spec.calls, got.bands, got.magnitudes)
	}
}

func TestModelKeys(t *testing.T) {
	pager := NewPager(NewPages())
	capture := &fakeCapture{state: audio.StateRecording}
	var m tea.Model = NewModel(&fakeSpectrum{}, capture, pager, 0)

	m, _ = m.Update(runes("3"))
	if i, _ := pager.Active(); i != 2 {
		t.Errorf("key 3 selected page %d, want 2", i)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if i, _ := pager.Active(); i != 0 {
		t.Errorf("right from last page = %d, want 0", i)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if i, _ := pager.Active(); i != 2 {
		t.Errorf("left from first page = %d, want 2", i)
	}
	m, _ = m.Update(runes("9"))
	if i, _ := pager.Active(); i != 2 {
		t.Errorf("missing page 9 changed page to %d", i)
	}

	m, _ = m.Update(runes("g"))
	if !capture.gate.Enabled() {
		t.Error("g did not enable the gate")
	}

	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestModelView(t *testing.T) {
	capture := &fakeCapture{state: audio.StateRecording, err: errors.New("device unplugged")}
	var m tea.Model = NewModel(&fakeSpectrum{}, capture, NewPager(NewPages()), 0)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 40, Height: 12})
	m, _ = m.Update(tickMsg(time.Now()))

	view := m.View()
	for _, want := range []string{"bars", "recording", "frames 42", "gate off", "device unplugged"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	noCapture := NewModel(&fakeSpectrum{}, nil, NewPager(NewPages()), 0)
	if !strings.Contains(noCapture.View(), "no capture") {
		t.Error("view without capture should say so")
	}
}

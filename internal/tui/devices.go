// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"audioviz/internal/audio"
)

// DeviceListModel lets the user pick a capture device.
type DeviceListModel struct {
	backend       string
	devices       []audio.DeviceInfo
	selectedIndex int
	chosen        bool
	viewport      viewport.Model
	ready         bool
}

// NewDeviceListModel returns a picker over devices with the default device
// preselected.
func NewDeviceListModel(backend string, devices []audio.DeviceInfo) DeviceListModel {
	m := DeviceListModel{backend: backend, devices: devices}
	for i, d := range devices {
		if d.IsDefault {
			m.selectedIndex = i
			break
		}
	}
	return m
}

// Init implements tea.Model.
func (m DeviceListModel) Init() tea.Cmd { return nil }

var (
	upKey     = key.NewBinding(key.WithKeys("up", "k"))
	downKey   = key.NewBinding(key.WithKeys("down", "j"))
	chooseKey = key.NewBinding(key.WithKeys("enter"))
	quitKey   = key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"))
)

// Update moves the selection and quits on choice or cancel.
func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(RenderDeviceList(m.devices, m.selectedIndex))

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, quitKey):
			return m, tea.Quit
		case key.Matches(msg, chooseKey):
			if len(m.devices) > 0 {
				m.chosen = true
			}
			return m, tea.Quit
		case key.Matches(msg, upKey):
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
		case key.Matches(msg, downKey):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
			}
		}
		if m.ready {
			m.viewport.SetContent(RenderDeviceList(m.devices, m.selectedIndex))
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m DeviceListModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	title := titleStyle.Render(fmt.Sprintf("Capture devices (%s)", m.backend))
	help := infoStyle.Render("↑/↓: Navigate • Enter: Select • q: Quit")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// Selected returns the chosen device, if the user pressed enter.
func (m DeviceListModel) Selected() (audio.DeviceInfo, bool) {
	if !m.chosen || len(m.devices) == 0 {
		return audio.DeviceInfo{}, false
	}
	return m.devices[m.selectedIndex], true
}

// RenderDeviceList formats devices, highlighting the selected one. A
// negative selected highlights nothing.
func RenderDeviceList(devices []audio.DeviceInfo, selected int) string {
	if len(devices) == 0 {
		return "No capture devices found."
	}

	var sb strings.Builder
	for i, d := range devices {
		marker := ""
		if d.IsDefault {
			marker = " [default]"
		}
		entry := fmt.Sprintf("[%d] %s%s\n", d.Index, d.Name, marker)
		entry += fmt.Sprintf("    Input channels: %d", d.MaxInputChannels)
		if d.DefaultSampleRate > 0 {
			entry += fmt.Sprintf(", default sample rate: %.0f Hz", d.DefaultSampleRate)
		}
		entry += "\n"

		if i == selected {
			entry = highlightStyle.Render(entry)
		}
		sb.WriteString(entry)
		sb.WriteString("\n")
	}
	return sb.String()
}

// PickDevice runs the picker full screen and returns the chosen device.
func PickDevice(backend string, devices []audio.DeviceInfo) (audio.DeviceInfo, bool, error) {
	p := tea.NewProgram(NewDeviceListModel(backend, devices), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return audio.DeviceInfo{}, false, err
	}
	d, ok := final.(DeviceListModel).Selected()
	return d, ok, nil
}

// SPDX-License-Identifier: MIT
//
// Package led drives a chain of MAX7219 8x8 dot-matrix chips. Every register
// write is a (register, value) pair; a transaction carries one pair per chip
// so all chips latch together on chip-select release.
package led

import (
	"fmt"
	"math"
	"sync"
)

// MAX7219 registers.
const (
	regRow0        = 0x01 // Rows are 0x01..0x08.
	regDecodeMode  = 0x09
	regIntensity   = 0x0A
	regScanLimit   = 0x0B
	regShutdown    = 0x0C
	regDisplayTest = 0x0F
)

const (
	// Rows is the height of each chip and of the display.
	Rows = 8
	// MaxIntensity is the brightest duty-cycle step.
	MaxIntensity = 15
)

// Matrix is a chain of chips forming a Devices*8 x 8 display. It keeps one
// row bitmask per chip and transmits the whole frame row by row.
type Matrix struct {
	mu      sync.Mutex
	bus     Bus
	devices int
	reverse bool
	fb      [][Rows]byte
	tx      []byte
	closed  bool
}

// NewMatrix configures every chip on the bus: display test off, no decode,
// all eight rows scanned, normal operation and the given intensity, then
// clears the display. reverseChain flips the order of chips in each
// transaction for chains fed from the far end.
func NewMatrix(bus Bus, devices, intensity int, reverseChain bool) (*Matrix, error) {
	if bus == nil {
		return nil, fmt.Errorf("%w: no bus", ErrDevice)
	}
	if devices < 1 {
		return nil, fmt.Errorf("%w: chain of %d devices", ErrDevice, devices)
	}

	m := &Matrix{
		bus:     bus,
		devices: devices,
		reverse: reverseChain,
		fb:      make([][Rows]byte, devices),
		tx:      make([]byte, 2*devices),
	}

	setup := []struct{ reg, val byte }{
		{regDisplayTest, 0},
		{regDecodeMode, 0},
		{regScanLimit, Rows - 1},
		{regShutdown, 1},
		{regIntensity, clampIntensity(intensity)},
	}
	for _, op := range setup {
		if err := m.writeAll(op.reg, op.val); err != nil {
			return nil, err
		}
	}
	if err := m.flush(); err != nil {
		return nil, err
	}
	return m, nil
}

func clampIntensity(v int) byte {
	return byte(min(max(v, 0), MaxIntensity))
}

// Columns returns the display width.
func (m *Matrix) Columns() int { return m.devices * 8 }

// Devices returns the number of chips in the chain.
func (m *Matrix) Devices() int { return m.devices }

// SetIntensity changes the brightness of every chip, clamped to
// [0, MaxIntensity].
func (m *Matrix) SetIntensity(v int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.writeAll(regIntensity, clampIntensity(v))
}

// Render lights heights[x] cells from the bottom of column x and transmits
// the frame. Heights are clamped to [0, Rows]; missing columns are dark and
// extra ones are ignored. flipX mirrors left and right, flipY top and bottom.
func (m *Matrix) Render(heights []int, flipX, flipY bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	clear(m.fb)
	cols := m.Columns()
	for x, h := range heights[:min(len(heights), cols)] {
		h = min(max(h, 0), Rows)
		xx := x
		if flipX {
			xx = cols - 1 - x
		}
		chip, bit := xx/8, byte(1)<<(7-xx%8)
		for yy := range h {
			y := Rows - 1 - yy
			if flipY {
				y = Rows - 1 - y
			}
			m.fb[chip][y] |= bit
		}
	}
	return m.flush()
}

// Clear blanks the display.
func (m *Matrix) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	clear(m.fb)
	return m.flush()
}

// Close blanks the display, puts the chips in shutdown and closes the bus.
func (m *Matrix) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	clear(m.fb)
	err := m.flush()
	if serr := m.writeAll(regShutdown, 0); err == nil {
		err = serr
	}
	if cerr := m.bus.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("%w: %v", ErrDevice, cerr)
	}
	return err
}

// flush sends one transaction per row, each carrying every chip's byte.
func (m *Matrix) flush() error {
	for row := range Rows {
		for chip := range m.devices {
			m.tx[2*chip] = regRow0 + byte(row)
			m.tx[2*chip+1] = m.fb[chip][row]
		}
		if err := m.send(); err != nil {
			return err
		}
	}
	return nil
}

// writeAll sets the same register on every chip.
func (m *Matrix) writeAll(reg, val byte) error {
	for chip := range m.devices {
		m.tx[2*chip] = reg
		m.tx[2*chip+1] = val
	}
	return m.send()
}

func (m *Matrix) send() error {
	if m.reverse {
		reversePairs(m.tx)
	}
	if err := m.bus.Tx(m.tx); err != nil {
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}
	return nil
}

// reversePairs reverses the order of (register, value) pairs in place.
func reversePairs(b []byte) {
	pairs := len(b) / 2
	for i := range pairs / 2 {
		j := pairs - 1 - i
		b[2*i], b[2*j] = b[2*j], b[2*i]
		b[2*i+1], b[2*j+1] = b[2*j+1], b[2*i+1]
	}
}

// ToHeight maps a band value in [0, 1] to a column height in [0, Rows].
func ToHeight(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(min(max(math.Round(v*Rows), 0), Rows))
}

// Pattern fills dst with the diagnostic frame for step n: one full-height
// column sweeping left to right.
func Pattern(dst []int, n int) {
	clear(dst)
	if len(dst) > 0 {
		dst[n%len(dst)] = Rows
	}
}

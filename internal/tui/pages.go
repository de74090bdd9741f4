// SPDX-License-Identifier: MIT
package tui

import (
	"math"
	"strings"
)

// Page is one way of drawing the spectrum. Render returns exactly height
// lines of exactly width cells, unstyled.
type Page interface {
	Name() string
	Init()
	Deinit()
	Render(bands, magnitudes []float64, width, height int) string
}

// NewPages returns the available pages in display order.
func NewPages() []Page {
	return []Page{&BarsPage{}, &PeakPage{}, &SpectrumPage{}}
}

var eighths = []rune(" ▁▂▃▄▅▆▇█")

// cell returns the glyph for row (counted from the bottom) of a bar that is
// level rows tall.
func cell(level float64, row int) rune {
	fill := level - float64(row)
	switch {
	case fill >= 1:
		return '█'
	case fill <= 0:
		return ' '
	default:
		return eighths[int(fill*8)]
	}
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}

// columnValue maps screen column x to a value. Wide screens give every value
// a slot of equal width with a one-cell gap; narrow ones sample the values.
func columnValue(values []float64, x, width int) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	if width < n {
		return values[x*n/width], true
	}
	slot := width / n
	i := x / slot
	if i >= n || (slot >= 2 && x%slot == slot-1) {
		return 0, false
	}
	return values[i], true
}

// drawBars renders values as vertical bars growing from the bottom.
func drawBars(values []float64, width, height int) string {
	var b strings.Builder
	for row := height - 1; row >= 0; row-- {
		for x := range width {
			v, ok := columnValue(values, x, width)
			if !ok {
				b.WriteByte(' ')
				continue
			}
			b.WriteRune(cell(unit(v)*float64(height), row))
		}
		if row > 0 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// BarsPage draws one bar per band.
type BarsPage struct{}

func (*BarsPage) Name() string { return "bars" }
func (*BarsPage) Init()        {}
func (*BarsPage) Deinit()      {}

func (*BarsPage) Render(bands, _ []float64, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}
	return drawBars(bands, width, height)
}

// Peak hold falls with constant acceleration, in band units per frame².
const peakGravity = 0.002

// PeakPage mirrors each band around the centre line and holds its recent
// peak, letting it fall back under gravity.
type PeakPage struct {
	peaks    []float64
	velocity []float64
}

func (*PeakPage) Name() string { return "peak" }

// Init clears the held peaks.
func (p *PeakPage) Init() {
	p.peaks, p.velocity = nil, nil
}

// Deinit drops the held peaks.
func (p *PeakPage) Deinit() {
	p.peaks, p.velocity = nil, nil
}

func (p *PeakPage) update(bands []float64) {
	if len(p.peaks) != len(bands) {
		p.peaks = make([]float64, len(bands))
		p.velocity = make([]float64, len(bands))
	}
	for i, v := range bands {
		v = unit(v)
		p.velocity[i] += peakGravity
		p.peaks[i] -= p.velocity[i]
		if v >= p.peaks[i] {
			p.peaks[i] = v
			p.velocity[i] = 0
		}
	}
}

// Peaks returns the held peak of each band.
func (p *PeakPage) Peaks() []float64 { return p.peaks }

func (p *PeakPage) Render(bands, _ []float64, width, height int) string {
	p.update(bands)
	if width <= 0 || height <= 0 {
		return ""
	}

	upper := (height + 1) / 2
	lower := height - upper
	var b strings.Builder

	// Upper half grows up from the centre with a peak marker above.
	for row := upper - 1; row >= 0; row-- {
		for x := range width {
			v, ok := columnValue(bands, x, width)
			if !ok {
				b.WriteByte(' ')
				continue
			}
			peak, _ := columnValue(p.peaks, x, width)
			level := unit(v) * float64(upper)
			peakRow := min(int(peak*float64(upper)), upper-1)
			switch {
			case level-float64(row) >= 1:
				b.WriteRune('█')
			case row == peakRow && peak > 0:
				b.WriteRune('▔')
			default:
				b.WriteRune(cell(level, row))
			}
		}
		b.WriteByte('\n')
	}

	// Lower half is the reflection, drawn in whole cells.
	for row := range lower {
		for x := range width {
			v, ok := columnValue(bands, x, width)
			if ok && unit(v)*float64(lower)-float64(row) >= 0.5 {
				b.WriteRune('░')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// SpectrumPage draws the raw bins 1..width, normalised by their maximum.
type SpectrumPage struct {
	scaled []float64
}

func (*SpectrumPage) Name() string { return "spectrum" }
func (s *SpectrumPage) Init()      {}

func (s *SpectrumPage) Deinit() { s.scaled = nil }

func (s *SpectrumPage) Render(_, magnitudes []float64, width, height int) string {
	if width <= 0 || height <= 0 {
		return ""
	}

	n := 0
	if len(magnitudes) > 1 {
		n = min(width, len(magnitudes)-1)
	}
	if cap(s.scaled) < width {
		s.scaled = make([]float64, width)
	}
	s.scaled = s.scaled[:width]
	clear(s.scaled)

	if n > 0 {
		bins := magnitudes[1 : n+1]
		peak := 0.0
		for _, m := range bins {
			peak = max(peak, m)
		}
		if peak > 0 {
			for i, m := range bins {
				s.scaled[i] = m / peak
			}
		}
	}
	return drawBars(s.scaled, width, height)
}

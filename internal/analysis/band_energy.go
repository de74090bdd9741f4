// SPDX-License-Identifier: MIT
package analysis

import "math"

// FrequencyRange names a span of the spectrum in Hz.
type FrequencyRange struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultRanges are the coarse ranges reported alongside the bands.
var DefaultRanges = []FrequencyRange{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: 20000},
}

// RangeEnergies writes one value per range into dst: the RMS magnitude of
// the bins whose centre falls inside the range, scaled so that a full-scale
// sinusoid alone in a range reads close to 1 and clamped to [0, 1]. binHz
// is the spacing between bins. dst must have len(ranges) elements.
func RangeEnergies(dst, mag []float64, ranges []FrequencyRange, binHz float64) {
	clear(dst)
	if len(mag) < 2 || binHz <= 0 {
		return
	}

	// A full-scale sinusoid peaks at (N/2) where N = 2*(len(mag)-1).
	fullScale := float64(len(mag) - 1)

	for r, fr := range ranges {
		if r >= len(dst) {
			return
		}
		lo := max(int(math.Ceil(fr.LowHz/binHz)), 1)
		hi := min(int(math.Ceil(fr.HighHz/binHz)), len(mag))
		if lo >= hi {
			continue
		}

		var energy, peak float64
		for _, m := range mag[lo:hi] {
			energy += m * m
			peak = max(peak, m)
		}
		// Peak-weighted so one strong bin in a wide range still registers.
		rms := math.Sqrt(energy / float64(hi-lo))
		dst[r] = min(math.Max(rms, peak)/fullScale, 1)
	}
}

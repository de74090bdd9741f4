// SPDX-License-Identifier: MIT
package analysis

import "math"

// normFloor keeps normalisation finite when every band is silent.
const normFloor = 1e-9

// BandConfig controls how a magnitude spectrum is folded into bands.
type BandConfig struct {
	Count        int     // Number of output bands.
	Smoothing    float64 // Weight of the previous value in the moving average.
	StartBin     int     // First participating bin; 0 is DC.
	SpanFraction float64 // Participating fraction of the spectrum.
}

// DefaultBandConfig returns 32 bands smoothed at 0.80 over bins
// [2, 0.33*N).
func DefaultBandConfig() BandConfig {
	return BandConfig{
		Count:        32,
		Smoothing:    0.80,
		StartBin:     2,
		SpanFraction: 0.33,
	}
}

// BandAggregator maps a magnitude spectrum onto Count quadratically spaced
// bands, normalises them against the loudest band, compresses them with a
// square root and smooths each one with an exponential moving average.
//
// The smoothing state belongs to the aggregator; consumers that poll at
// different rates must each own one.
type BandAggregator struct {
	cfg      BandConfig
	raw      []float64
	smoothed []float64
}

// NewBandAggregator returns an aggregator with all bands at zero. Invalid
// fields fall back to DefaultBandConfig values.
func NewBandAggregator(cfg BandConfig) *BandAggregator {
	def := DefaultBandConfig()
	if cfg.Count < 1 {
		cfg.Count = def.Count
	}
	if cfg.Smoothing < 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = def.Smoothing
	}
	if cfg.StartBin < 1 {
		cfg.StartBin = def.StartBin
	}
	if cfg.SpanFraction <= 0 || cfg.SpanFraction > 1 {
		cfg.SpanFraction = def.SpanFraction
	}
	return &BandAggregator{
		cfg:      cfg,
		raw:      make([]float64, cfg.Count),
		smoothed: make([]float64, cfg.Count),
	}
}

// Count returns the number of bands.
func (b *BandAggregator) Count() int { return b.cfg.Count }

// span returns the participating bin interval [start, end) for a spectrum of
// n bins. It is widened so every band can own at least one bin, then capped
// below the last bin.
func (b *BandAggregator) span(n int) (start, end int) {
	start = b.cfg.StartBin
	end = int(float64(n) * b.cfg.SpanFraction)
	if end < start+b.cfg.Count {
		end = start + b.cfg.Count
	}
	if end > n-1 {
		end = n - 1
	}
	if end < start {
		end = start
	}
	return start, end
}

// BandRange returns the half-open bin range [lo, hi) that band i covers in a
// spectrum of n bins. The range is empty when the spectrum is too short.
func (b *BandAggregator) BandRange(i, n int) (lo, hi int) {
	start, end := b.span(n)
	width := float64(end - start)
	count := float64(b.cfg.Count)

	t0 := float64(i) / count
	t1 := float64(i+1) / count
	lo = start + int(t0*t0*width)
	hi = start + int(t1*t1*width)

	if hi <= lo {
		hi = lo + 1
	}
	if hi > end {
		hi = end
	}
	return lo, hi
}

// Compute folds mag into bands and advances the smoothing state. The returned
// slice is owned by the aggregator and holds values in [0, 1]; it is
// overwritten by the next call.
func (b *BandAggregator) Compute(mag []float64) []float64 {
	n := len(mag)
	peak := 0.0
	for i := range b.raw {
		lo, hi := b.BandRange(i, n)
		v := 0.0
		if lo < hi && hi <= n {
			for _, m := range mag[lo:hi] {
				v += m
			}
			v /= float64(hi - lo)
		}
		b.raw[i] = v
		peak = max(peak, v)
	}
	peak = max(peak, normFloor)

	alpha := b.cfg.Smoothing
	for i, v := range b.raw {
		v = math.Sqrt(min(max(v/peak, 0), 1))
		b.smoothed[i] = alpha*b.smoothed[i] + (1-alpha)*v
	}
	return b.smoothed
}

// Values returns the current smoothed bands without advancing them.
func (b *BandAggregator) Values() []float64 { return b.smoothed }

// Reset returns every band to zero.
func (b *BandAggregator) Reset() {
	clear(b.raw)
	clear(b.smoothed)
}

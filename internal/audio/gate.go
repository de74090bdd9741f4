// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Gate is a noise gate: a batch whose peak amplitude does not exceed the
// threshold is treated as silence. It may be reconfigured from any goroutine
// while the capture loop is running.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Uint64 // math.Float64bits of the threshold
}

// Enable turns the gate on.
func (g *Gate) Enable() { g.enabled.Store(true) }

// Disable turns the gate off; every batch passes.
func (g *Gate) Disable() { g.enabled.Store(false) }

// Toggle flips the gate and returns the new state.
func (g *Gate) Toggle() bool {
	for {
		old := g.enabled.Load()
		if g.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Enabled reports whether the gate is on.
func (g *Gate) Enabled() bool { return g.enabled.Load() }

// SetThreshold adjusts the gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold.Store(math.Float64bits(threshold))
}

// Threshold returns the current threshold in [0, 1].
func (g *Gate) Threshold() float64 {
	return math.Float64frombits(g.threshold.Load())
}

// Pass reports whether samples should reach the analyser. It is always true
// while the gate is disabled.
func (g *Gate) Pass(samples []float64) bool {
	if !g.enabled.Load() {
		return true
	}
	threshold := g.Threshold()
	for _, s := range samples {
		if math.Abs(s) > threshold {
			return true
		}
	}
	return false
}

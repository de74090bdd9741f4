// SPDX-License-Identifier: MIT
package analysis

// BeatDetector flags onsets when an energy value rises sharply over the
// previous observation.
type BeatDetector struct {
	threshold      float64 // Minimum energy for an onset.
	minEnergyRatio float64 // Minimum rise relative to the previous value.
	cooldown       int     // Observations ignored after an onset.
	holdoff        int
	lastEnergy     float64
}

// NewBeatDetector returns a detector. cooldown is counted in observations.
func NewBeatDetector(threshold, minEnergyRatio float64, cooldown int) *BeatDetector {
	return &BeatDetector{
		threshold:      threshold,
		minEnergyRatio: minEnergyRatio,
		cooldown:       max(cooldown, 0),
	}
}

// Observe records energy and reports whether it is an onset.
func (d *BeatDetector) Observe(energy float64) bool {
	last := d.lastEnergy
	d.lastEnergy = energy

	if d.holdoff > 0 {
		d.holdoff--
		return false
	}
	if energy <= d.threshold {
		return false
	}
	if last > 0 && energy/last < d.minEnergyRatio {
		return false
	}
	d.holdoff = d.cooldown
	return true
}

// Reset forgets the previous observation and any pending cooldown.
func (d *BeatDetector) Reset() {
	d.lastEnergy = 0
	d.holdoff = 0
}

// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"math"
	"testing"
)

func flatSpectrum(bins int, v float64) []float64 {
	m := make([]float64, bins)
	for i := range m {
		m[i] = v
	}
	return m
}

func TestFeedsSmoothIndependently(t *testing.T) {
	store := NewSpectrumStore(testBins, 44100)
	store.Publish(flatSpectrum(testBins, 10))

	display := NewFeed("display", store, DefaultBandConfig())
	led := NewFeed("led", store, DefaultBandConfig())

	for range 10 {
		display.Bands()
	}
	ledBands := led.Bands()

	if math.Abs(ledBands[0]-0.2) > 1e-12 {
		t.Errorf("led band 0 = %v, want 0.2 regardless of the display's cadence", ledBands[0])
	}
	if v := display.Bands()[0]; v < 0.85 {
		t.Errorf("display band 0 = %v, want > 0.85 after 11 calls", v)
	}
	if display.Seq() != 1 || led.Seq() != 1 {
		t.Errorf("Seq = %d/%d, want 1", display.Seq(), led.Seq())
	}
}

func TestFeedMagnitudesArePrivate(t *testing.T) {
	store := NewSpectrumStore(8, 1000)
	store.Publish([]float64{0, 1, 2, 3, 4, 5, 6, 7})

	f := NewFeed("test", store, BandConfig{Count: 2})
	f.Bands()
	f.Magnitudes()[3] = 42

	dst := make([]float64, 8)
	store.CopyInto(dst)
	if dst[3] != 3 {
		t.Errorf("store value = %v, feed write leaked into snapshot", dst[3])
	}
}

type failingSource struct{}

func (failingSource) CopyInto([]float64) (uint64, error) { return 0, errors.New("offline") }
func (failingSource) Bins() int                          { return testBins }
func (failingSource) BinWidth() float64                  { return 43 }

func TestFeedCopyFailureReadsSilence(t *testing.T) {
	f := NewFeed("broken", failingSource{}, DefaultBandConfig())
	for i, v := range f.Bands() {
		if v != 0 {
			t.Errorf("band %d = %v, want 0", i, v)
		}
	}
}

func TestFeedFrame(t *testing.T) {
	store := NewSpectrumStore(testBins, 44100)
	store.Publish(flatSpectrum(testBins, 1))

	f := NewFeed("ws", store, DefaultBandConfig())
	frame := f.Frame()

	if frame.Seq != 1 {
		t.Errorf("Seq = %d, want 1", frame.Seq)
	}
	if len(frame.Bands) != 32 || len(frame.Magnitudes) != testBins || len(frame.Energy) != len(DefaultRanges) {
		t.Errorf("frame lengths = %d/%d/%d", len(frame.Bands), len(frame.Magnitudes), len(frame.Energy))
	}
	if frame.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}

	f.Reset()
	for i, v := range f.agg.Values() {
		if v != 0 {
			t.Fatalf("band %d = %v after Reset", i, v)
		}
	}
}

func TestBeatDetector(t *testing.T) {
	d := NewBeatDetector(0.3, 1.3, 2)

	steps := []struct {
		energy float64
		want   bool
	}{
		{0.1, false}, // below threshold
		{0.5, true},  // rise of 5x
		{0.9, false}, // cooldown
		{0.9, false}, // cooldown
		{0.95, false},
		{2.0, true},
		{0, false},
	}
	for i, s := range steps {
		if got := d.Observe(s.energy); got != s.want {
			t.Errorf("step %d Observe(%v) = %v, want %v", i, s.energy, got, s.want)
		}
	}

	d.Reset()
	if !d.Observe(0.5) {
		t.Error("first loud observation after Reset should be an onset")
	}
}

func TestRangeEnergies(t *testing.T) {
	const bins = 513
	binHz := 44100.0 / 1024

	mag := make([]float64, bins)
	// Full-scale tone in the lowMid range.
	mag[int(math.Round(400/binHz))] = 512

	dst := make([]float64, len(DefaultRanges))
	RangeEnergies(dst, mag, DefaultRanges, binHz)

	if dst[2] < 0.99 {
		t.Errorf("lowMid = %v, want ~1", dst[2])
	}
	for i, v := range dst {
		if i != 2 && v != 0 {
			t.Errorf("%s = %v, want 0", DefaultRanges[i].Name, v)
		}
	}

	RangeEnergies(dst, nil, DefaultRanges, binHz)
	for i, v := range dst {
		if v != 0 {
			t.Errorf("empty spectrum %s = %v", DefaultRanges[i].Name, v)
		}
	}
}

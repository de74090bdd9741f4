// SPDX-License-Identifier: MIT
package fft

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"audioviz/pkg/utils"

	"github.com/argusdusty/gofft"
)

const (
	testFFTSize    = 1024
	testSampleRate = 44100
)

func newTestAnalyzer(t testing.TB, w Window) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(testFFTSize, w)
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}
	return a
}

func TestNewAnalyzerRejectsInvalidSize(t *testing.T) {
	for _, size := range []int{0, -8, 1000} {
		if _, err := NewAnalyzer(size, Rectangular); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("NewAnalyzer(%d) error = %v, want ErrInvalidSize", size, err)
		}
	}

	a := newTestAnalyzer(t, Rectangular)
	if a.Size() != testFFTSize || a.Bins() != testFFTSize/2+1 {
		t.Errorf("Size/Bins = %d/%d", a.Size(), a.Bins())
	}
}

func TestTransformZeroWindow(t *testing.T) {
	a := newTestAnalyzer(t, Rectangular)

	mags := a.Transform(make([]float64, testFFTSize))
	for i, m := range mags {
		if m != 0 {
			t.Fatalf("bin %d = %v, want 0", i, m)
		}
	}
}

func TestTransformBinAlignedSine(t *testing.T) {
	a := newTestAnalyzer(t, Rectangular)

	const bin = 32
	freq := float64(bin) * testSampleRate / testFFTSize
	samples := utils.GenerateSineWave(testFFTSize, testSampleRate, freq, 0.9)

	mags := a.Transform(samples)

	if peak := utils.FindPeakBin(mags, 1, len(mags)-1); peak != bin {
		t.Fatalf("peak bin = %d, want %d", peak, bin)
	}

	want := 0.9 * testFFTSize / 2
	if math.Abs(mags[bin]-want) > 1e-6*want {
		t.Errorf("peak magnitude = %v, want %v", mags[bin], want)
	}
	for _, n := range []int{bin - 1, bin + 1} {
		if mags[n]*1000 > mags[bin] {
			t.Errorf("neighbour bin %d = %v, not much smaller than peak %v", n, mags[n], mags[bin])
		}
	}
}

func TestTransformDeterministic(t *testing.T) {
	a := newTestAnalyzer(t, Rectangular)
	b := newTestAnalyzer(t, Rectangular)
	samples := utils.GenerateComplexWave(testFFTSize, testSampleRate)

	first := append([]float64(nil), a.Transform(samples)...)
	second := a.Transform(samples)
	other := b.Transform(samples)

	for i := range first {
		if first[i] != second[i] || first[i] != other[i] {
			t.Fatalf("bin %d differs: %v %v %v", i, first[i], second[i], other[i])
		}
	}
}

func TestTransformMatchesReferenceFFT(t *testing.T) {
	a := newTestAnalyzer(t, Rectangular)
	samples := utils.GenerateComplexWave(testFFTSize, testSampleRate)

	mags := a.Transform(samples)

	ref := gofft.Float64ToComplex128Array(samples)
	if err := gofft.FFT(ref); err != nil {
		t.Fatalf("gofft.FFT() error = %v", err)
	}

	for i := range mags {
		want := cmplx.Abs(ref[i])
		if math.Abs(mags[i]-want) > 1e-6 {
			t.Errorf("bin %d = %v, reference %v", i, mags[i], want)
		}
	}
}

func TestTransformZeroPadsShortInput(t *testing.T) {
	a := newTestAnalyzer(t, Rectangular)

	a.Transform(utils.GenerateComplexWave(testFFTSize, testSampleRate))
	mags := a.Transform(nil)
	for i, m := range mags {
		if m != 0 {
			t.Fatalf("bin %d = %v after empty input, want 0", i, m)
		}
	}
}

func TestHannReducesLeakage(t *testing.T) {
	rect := newTestAnalyzer(t, Rectangular)
	hann := newTestAnalyzer(t, Hann)

	// Half-bin offset, the worst case for leakage.
	freq := 40.5 * testSampleRate / testFFTSize
	samples := utils.GenerateSineWave(testFFTSize, testSampleRate, freq, 0.9)

	far := 120
	r := rect.Transform(samples)[far] / rect.Transform(samples)[40]
	h := hann.Transform(samples)[far] / hann.Transform(samples)[40]
	if h >= r {
		t.Errorf("Hann far/peak ratio %v not below rectangular %v", h, r)
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in   string
		want Window
		ok   bool
	}{
		{"", Rectangular, true},
		{"none", Rectangular, true},
		{"Hann", Hann, true},
		{"hanning", Hann, true},
		{"BlackmanNuttall", BlackmanNuttall, true},
		{"triangle-ish", Rectangular, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindow(tt.in)
			if got != tt.want || (err == nil) != tt.ok {
				t.Errorf("ParseWindow(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}

func TestBinFrequency(t *testing.T) {
	a := newTestAnalyzer(t, Rectangular)

	if got := a.BinFrequency(0, testSampleRate); got != 0 {
		t.Errorf("DC = %v", got)
	}
	if got, want := a.BinFrequency(testFFTSize/2, testSampleRate), testSampleRate/2.0; got != want {
		t.Errorf("Nyquist = %v, want %v", got, want)
	}
	if got := a.BinFrequency(testFFTSize, testSampleRate); got != 0 {
		t.Errorf("out of range = %v, want 0", got)
	}
	if got := a.NearestBin(440, testSampleRate); got != 10 {
		t.Errorf("NearestBin(440) = %d, want 10", got)
	}
}

func TestTransformHotPath(t *testing.T) {
	for _, w := range []Window{Rectangular, Hann} {
		t.Run(w.String(), func(t *testing.T) {
			a := newTestAnalyzer(t, w)
			samples := utils.GenerateComplexWave(testFFTSize, testSampleRate)

			a.Transform(samples)
			allocs := testing.AllocsPerRun(100, func() {
				a.Transform(samples)
			})
			if allocs > 0 {
				t.Errorf("Expected zero allocations in Transform hot path, got %.1f", allocs)
			}
		})
	}
}

func BenchmarkTransform(b *testing.B) {
	a := newTestAnalyzer(b, Rectangular)
	samples := utils.GenerateComplexWave(testFFTSize, testSampleRate)

	b.ReportAllocs()
	for b.Loop() {
		a.Transform(samples)
	}
}

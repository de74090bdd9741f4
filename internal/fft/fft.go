// SPDX-License-Identifier: MIT
package fft

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"audioviz/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// ErrInvalidSize is returned when the requested transform length cannot be
// planned.
var ErrInvalidSize = errors.New("transform size must be a positive power of two")

// Window selects the function applied to the sample window before the
// transform. The zero value is Rectangular, which leaves the samples as they
// are.
type Window int

// Available window functions.
const (
	Rectangular Window = iota
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

var windowNames = [...]string{
	Rectangular:     "none",
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	Hann:            "hann",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
}

func (w Window) String() string {
	if w < 0 || int(w) >= len(windowNames) {
		return fmt.Sprintf("Window(%d)", int(w))
	}
	return windowNames[w]
}

// ParseWindow converts a case-insensitive name to a Window. An empty name,
// "none" and "rectangular" select Rectangular.
func ParseWindow(name string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "rectangular":
		return Rectangular, nil
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Rectangular, fmt.Errorf("unknown window function %q", name)
	}
}

// coefficients returns the window of length n, or nil for Rectangular.
func (w Window) coefficients(n int) []float64 {
	if w == Rectangular {
		return nil
	}
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch w {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	}
	return coeffs
}

// Analyzer performs a real-input transform of a fixed-length sample window
// and the magnitude of every resulting bin. All buffers and the transform
// plan are allocated once; Transform does not allocate.
//
// An Analyzer is not safe for concurrent use. It is owned by the capture
// goroutine, and results reach other goroutines through a snapshot copy.
type Analyzer struct {
	size      int
	plan      *fourier.FFT
	window    []float64    // nil for Rectangular
	input     []float64    // windowed copy of the samples
	coeffs    []complex128 // size/2 + 1 bins
	magnitude []float64    // size/2 + 1 bins
}

// NewAnalyzer plans a transform of length size, which must be a power of two.
func NewAnalyzer(size int, w Window) (*Analyzer, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("%w: got %d (try %d)", ErrInvalidSize, size, bitint.NextPowerOfTwo(size))
	}

	bins := size/2 + 1
	return &Analyzer{
		size:      size,
		plan:      fourier.NewFFT(size),
		window:    w.coefficients(size),
		input:     make([]float64, size),
		coeffs:    make([]complex128, bins),
		magnitude: make([]float64, bins),
	}, nil
}

// Size returns the transform length.
func (a *Analyzer) Size() int { return a.size }

// Bins returns the number of magnitude bins, Size()/2 + 1.
func (a *Analyzer) Bins() int { return len(a.magnitude) }

// Transform computes the magnitude spectrum of samples. Samples beyond Size()
// are ignored and a short window is zero-padded. The returned slice is owned
// by the Analyzer and is overwritten by the next call.
func (a *Analyzer) Transform(samples []float64) []float64 {
	n := copy(a.input, samples)
	clear(a.input[n:])

	if a.window != nil {
		for i, c := range a.window {
			a.input[i] *= c
		}
	}

	a.plan.Coefficients(a.coeffs, a.input)

	for i, c := range a.coeffs {
		re, im := real(c), imag(c)
		a.magnitude[i] = math.Sqrt(re*re + im*im)
	}
	return a.magnitude
}

// BinFrequency returns the centre frequency in Hz of bin i at the given
// sample rate, or 0 when i is out of range.
func (a *Analyzer) BinFrequency(i int, sampleRate float64) float64 {
	if i < 0 || i >= len(a.magnitude) {
		return 0
	}
	return float64(i) * sampleRate / float64(a.size)
}

// NearestBin returns the bin whose centre frequency is closest to freq.
func (a *Analyzer) NearestBin(freq, sampleRate float64) int {
	if sampleRate <= 0 {
		return 0
	}
	bin := int(math.Round(freq * float64(a.size) / sampleRate))
	return max(0, min(bin, len(a.magnitude)-1))
}

// SPDX-License-Identifier: MIT
package analysis

// MagnitudeSource provides copies of the latest magnitude spectrum. It
// decouples consumers from the concrete snapshot store.
type MagnitudeSource interface {
	CopyInto(dst []float64) (uint64, error) // CopyInto copies the latest spectrum and returns its sequence number.
	Bins() int                              // Bins returns the fixed spectrum length.
	BinWidth() float64                      // BinWidth returns the bin spacing in Hz.
}

// Compile-time check.
var _ MagnitudeSource = (*SpectrumStore)(nil)

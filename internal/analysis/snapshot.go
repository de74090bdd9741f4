// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"sync"
)

// ErrLengthMismatch is returned when a destination slice does not match the
// number of bins held by a SpectrumStore.
var ErrLengthMismatch = errors.New("destination length does not match spectrum")

// SpectrumStore is the single shared magnitude snapshot. The capture
// goroutine publishes into it and any number of readers copy out of it; no
// caller ever holds a reference to the stored array.
type SpectrumStore struct {
	mu         sync.RWMutex // Guards magnitude and seq.
	magnitude  []float64
	seq        uint64 // Incremented on every Publish and Reset.
	sampleRate float64
}

// NewSpectrumStore returns a zeroed store holding bins magnitudes computed at
// sampleRate.
func NewSpectrumStore(bins int, sampleRate float64) *SpectrumStore {
	return &SpectrumStore{
		magnitude:  make([]float64, max(bins, 0)),
		sampleRate: sampleRate,
	}
}

// Publish replaces the snapshot with a copy of m. Extra values are ignored and
// missing ones are zeroed.
func (s *SpectrumStore) Publish(m []float64) {
	s.mu.Lock()
	n := copy(s.magnitude, m)
	clear(s.magnitude[n:])
	s.seq++
	s.mu.Unlock()
}

// CopyInto copies the latest snapshot into dst and returns its sequence
// number. dst must have exactly Bins() elements.
func (s *SpectrumStore) CopyInto(dst []float64) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(dst) != len(s.magnitude) {
		return s.seq, fmt.Errorf("%w: got %d, need %d", ErrLengthMismatch, len(dst), len(s.magnitude))
	}
	copy(dst, s.magnitude)
	return s.seq, nil
}

// Reset zeroes the snapshot so readers decay to silence after capture stops.
func (s *SpectrumStore) Reset() {
	s.mu.Lock()
	clear(s.magnitude)
	s.seq++
	s.mu.Unlock()
}

// Seq returns the sequence number of the latest snapshot.
func (s *SpectrumStore) Seq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Bins returns the number of magnitudes per snapshot. It never changes.
func (s *SpectrumStore) Bins() int {
	return len(s.magnitude)
}

// BinWidth returns the spacing between bin centres in Hz.
func (s *SpectrumStore) BinWidth() float64 {
	if len(s.magnitude) < 2 {
		return 0
	}
	return s.sampleRate / float64(2*(len(s.magnitude)-1))
}

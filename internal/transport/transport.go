// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"time"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Frame is one consumer refresh: the band values and the spectrum they were
// derived from.
type Frame struct {
	Seq        uint64    // Snapshot sequence number.
	Timestamp  time.Time // When the frame was built.
	Bands      []float64 // Smoothed band values in [0, 1].
	Magnitudes []float64 // Raw magnitude spectrum, DC first.
	Energy     []float64 // Named range energies in [0, 1].
	Beat       bool      // Onset detected on this refresh.
}

// Clone returns a copy of f that shares no memory with it.
func (f Frame) Clone() Frame {
	f.Bands = append([]float64(nil), f.Bands...)
	f.Magnitudes = append([]float64(nil), f.Magnitudes...)
	f.Energy = append([]float64(nil), f.Energy...)
	return f
}

// Transport defines a generic interface for sending frames to a consumer.
// Send must not retain the frame's slices after it returns; implementations
// should be thread-safe.
type Transport interface {
	Send(frame Frame) error
	Close() error
}

// FrameSource produces a fresh frame on every call. A source is used from a
// single goroutine.
type FrameSource interface {
	Frame() Frame
}

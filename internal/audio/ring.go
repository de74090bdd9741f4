// SPDX-License-Identifier: MIT
package audio

import "fmt"

// MaxRingCapacity bounds the ring buffer, and so the transform window.
const MaxRingCapacity = 65536

// RingBuffer keeps the most recent Cap() samples. The cursor always points at
// the next slot to overwrite, which is also the oldest retained sample.
//
// A RingBuffer is owned by the capture goroutine and is not safe for
// concurrent use.
type RingBuffer struct {
	samples []float64
	cursor  int
}

// NewRingBuffer allocates a zero-filled buffer. Capacities above
// MaxRingCapacity are clamped.
func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: ring capacity %d", ErrAllocation, capacity)
	}
	capacity = min(capacity, MaxRingCapacity)
	return &RingBuffer{samples: make([]float64, capacity)}, nil
}

// Cap returns the capacity, or 0 after Free.
func (r *RingBuffer) Cap() int { return len(r.samples) }

// Write appends samples, overwriting the oldest ones. When the batch is
// longer than the buffer only its last Cap() samples are kept. The cursor
// always advances by len(samples) mod Cap().
func (r *RingBuffer) Write(samples []float64) {
	c := len(r.samples)
	if c == 0 || len(samples) == 0 {
		return
	}

	if len(samples) > c {
		// The dropped prefix still counts towards the cursor.
		r.cursor = (r.cursor + len(samples) - c) % c
		samples = samples[len(samples)-c:]
	}

	n := copy(r.samples[r.cursor:], samples)
	copy(r.samples, samples[n:])
	r.cursor = (r.cursor + len(samples)) % c
}

// ReadLinearized copies the buffer into out oldest sample first and returns
// the number of samples copied. out should have Cap() elements; a shorter
// out receives the oldest samples only.
func (r *RingBuffer) ReadLinearized(out []float64) int {
	n := copy(out, r.samples[r.cursor:])
	n += copy(out[n:], r.samples[:r.cursor])
	return n
}

// Reset zeroes the contents and rewinds the cursor.
func (r *RingBuffer) Reset() {
	clear(r.samples)
	r.cursor = 0
}

// Free releases the storage. The buffer ignores writes and reads nothing
// until replaced.
func (r *RingBuffer) Free() {
	r.samples = nil
	r.cursor = 0
}

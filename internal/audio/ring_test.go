// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"testing"
)

func seq(from, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(from + i)
	}
	return out
}

func TestNewRingBuffer(t *testing.T) {
	for _, c := range []int{0, -1} {
		if _, err := NewRingBuffer(c); !errors.Is(err, ErrAllocation) {
			t.Errorf("NewRingBuffer(%d) error = %v, want ErrAllocation", c, err)
		}
	}

	r, err := NewRingBuffer(MaxRingCapacity * 2)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	if r.Cap() != MaxRingCapacity {
		t.Errorf("Cap() = %d, want clamp to %d", r.Cap(), MaxRingCapacity)
	}
}

func TestRingBufferStartsZeroed(t *testing.T) {
	r, _ := NewRingBuffer(8)
	out := seq(1, 8)
	if n := r.ReadLinearized(out); n != 8 {
		t.Fatalf("ReadLinearized() = %d, want 8", n)
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %v, want 0", i, v)
		}
	}
}

func TestRingBufferKeepsLastCapacitySamples(t *testing.T) {
	tests := []struct {
		name    string
		batches []int
	}{
		{"exact fill", []int{8}},
		{"two partial", []int{5, 5}},
		{"many small", []int{3, 3, 3, 3, 3}},
		{"oversized batch", []int{20}},
		{"oversized after partial", []int{3, 19}},
		{"with empty writes", []int{0, 6, 0, 7, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := NewRingBuffer(8)
			next := 0
			for _, n := range tt.batches {
				r.Write(seq(next, n))
				next += n
			}

			out := make([]float64, 8)
			r.ReadLinearized(out)
			want := seq(next-8, 8)
			for i := range want {
				if out[i] != want[i] {
					t.Fatalf("out = %v, want %v", out, want)
				}
			}
		})
	}
}

func TestRingBufferEmptyWriteIsNoOp(t *testing.T) {
	r, _ := NewRingBuffer(4)
	r.Write(seq(1, 3))
	before := make([]float64, 4)
	r.ReadLinearized(before)

	r.Write(nil)
	r.Write([]float64{})

	after := make([]float64, 4)
	r.ReadLinearized(after)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("empty write changed contents: %v -> %v", before, after)
		}
	}
}

func TestRingBufferResetAndFree(t *testing.T) {
	r, _ := NewRingBuffer(4)
	r.Write(seq(1, 6))
	r.Reset()

	out := seq(1, 4)
	r.ReadLinearized(out)
	for _, v := range out {
		if v != 0 {
			t.Fatalf("after Reset out = %v, want zeros", out)
		}
	}

	r.Free()
	if r.Cap() != 0 {
		t.Errorf("Cap() after Free = %d, want 0", r.Cap())
	}
	r.Write(seq(1, 4))
	if n := r.ReadLinearized(out); n != 0 {
		t.Errorf("ReadLinearized after Free = %d, want 0", n)
	}
}

func TestRingBufferHotPathAllocations(t *testing.T) {
	r, _ := NewRingBuffer(1024)
	batch := seq(0, 256)
	out := make([]float64, 1024)

	allocs := testing.AllocsPerRun(100, func() {
		r.Write(batch)
		r.ReadLinearized(out)
	})
	if allocs > 0 {
		t.Errorf("Write+ReadLinearized allocated %.1f times, want 0", allocs)
	}
}

func BenchmarkRingBuffer(b *testing.B) {
	r, _ := NewRingBuffer(2048)
	batch := seq(0, 512)
	out := make([]float64, 2048)
	for b.Loop() {
		r.Write(batch)
		r.ReadLinearized(out)
	}
}

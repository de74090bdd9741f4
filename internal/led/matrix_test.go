// SPDX-License-Identifier: MIT
package led

import (
	"bytes"
	"errors"
	"math"
	"sync"
	"testing"
)

type fakeBus struct {
	mu      sync.Mutex
	txs     [][]byte
	failing bool
	closed  bool
}

func (b *fakeBus) Tx(w []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failing {
		return errors.New("bus write failed")
	}
	b.txs = append(b.txs, bytes.Clone(w))
	return nil
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBus) setFailing(v bool) {
	b.mu.Lock()
	b.failing = v
	b.mu.Unlock()
}

// take returns and forgets the recorded transactions.
func (b *fakeBus) take() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.txs
	b.txs = nil
	return out
}

func newTestMatrix(t *testing.T, devices int, reverse bool) (*Matrix, *fakeBus) {
	t.Helper()
	bus := &fakeBus{}
	m, err := NewMatrix(bus, devices, 3, reverse)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	bus.take()
	return m, bus
}

// rows returns the value each chip received for every row register, indexed
// [row][chip], checking that every transaction addresses all chips.
func rows(t *testing.T, txs [][]byte, devices int) [Rows][]byte {
	t.Helper()
	if len(txs) != Rows {
		t.Fatalf("got %d transactions, want one per row (%d)", len(txs), Rows)
	}
	var out [Rows][]byte
	for i, tx := range txs {
		if len(tx) != 2*devices {
			t.Fatalf("transaction %d has %d bytes, want %d", i, len(tx), 2*devices)
		}
		out[i] = make([]byte, devices)
		for chip := range devices {
			if tx[2*chip] != byte(i+1) {
				t.Fatalf("transaction %d addresses register %#x for chip %d, want %#x", i, tx[2*chip], chip, i+1)
			}
			out[i][chip] = tx[2*chip+1]
		}
	}
	return out
}

func TestNewMatrixInitSequence(t *testing.T) {
	bus := &fakeBus{}
	if _, err := NewMatrix(bus, 2, 99, false); err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	txs := bus.take()

	want := [][]byte{
		{0x0F, 0x00, 0x0F, 0x00},
		{0x09, 0x00, 0x09, 0x00},
		{0x0B, 0x07, 0x0B, 0x07},
		{0x0C, 0x01, 0x0C, 0x01},
		{0x0A, 0x0F, 0x0A, 0x0F},
	}
	if len(txs) != len(want)+Rows {
		t.Fatalf("got %d transactions, want %d", len(txs), len(want)+Rows)
	}
	for i := range want {
		if !bytes.Equal(txs[i], want[i]) {
			t.Errorf("tx %d = % x, want % x", i, txs[i], want[i])
		}
	}
	for r, vals := range rows(t, txs[len(want):], 2) {
		if vals[0] != 0 || vals[1] != 0 {
			t.Errorf("row %d not cleared: % x", r, vals)
		}
	}
}

func TestNewMatrixErrors(t *testing.T) {
	if _, err := NewMatrix(nil, 4, 3, false); !errors.Is(err, ErrDevice) {
		t.Errorf("nil bus error = %v, want ErrDevice", err)
	}
	if _, err := NewMatrix(&fakeBus{}, 0, 3, false); !errors.Is(err, ErrDevice) {
		t.Errorf("empty chain error = %v, want ErrDevice", err)
	}
	if _, err := NewMatrix(&fakeBus{failing: true}, 4, 3, false); !errors.Is(err, ErrDevice) {
		t.Errorf("failing bus error = %v, want ErrDevice", err)
	}
}

func TestRender(t *testing.T) {
	heights := make([]int, 16)
	heights[0] = 8
	heights[9] = 2
	heights[15] = 1

	tests := []struct {
		name         string
		flipX, flipY bool
		want         [Rows][2]byte
	}{
		{
			name: "plain",
			want: [Rows][2]byte{
				{0x80, 0}, {0x80, 0}, {0x80, 0}, {0x80, 0},
				{0x80, 0}, {0x80, 0}, {0x80, 0x40}, {0x80, 0x41},
			},
		},
		{
			name:  "flip x",
			flipX: true,
			want: [Rows][2]byte{
				{0, 0x01}, {0, 0x01}, {0, 0x01}, {0, 0x01},
				{0, 0x01}, {0, 0x01}, {0x02, 0x01}, {0x82, 0x01},
			},
		},
		{
			name:  "flip y",
			flipY: true,
			want: [Rows][2]byte{
				{0x80, 0x41}, {0x80, 0x40}, {0x80, 0}, {0x80, 0},
				{0x80, 0}, {0x80, 0}, {0x80, 0}, {0x80, 0},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, bus := newTestMatrix(t, 2, false)
			if err := m.Render(heights, tt.flipX, tt.flipY); err != nil {
				t.Fatalf("Render: %v", err)
			}
			got := rows(t, bus.take(), 2)
			for r := range Rows {
				if got[r][0] != tt.want[r][0] || got[r][1] != tt.want[r][1] {
					t.Errorf("row %d = % x, want % x", r, got[r], tt.want[r])
				}
			}
		})
	}
}

func TestRenderRebuildsAndClamps(t *testing.T) {
	m, bus := newTestMatrix(t, 1, false)
	if err := m.Render([]int{8, 8, 8, 8, 8, 8, 8, 8}, false, false); err != nil {
		t.Fatal(err)
	}
	bus.take()

	// Out-of-range heights clamp; extra columns are ignored.
	if err := m.Render([]int{20, -3, 0, 0, 0, 0, 0, 0, 8, 8}, false, false); err != nil {
		t.Fatal(err)
	}
	for r, vals := range rows(t, bus.take(), 1) {
		if vals[0] != 0x80 {
			t.Errorf("row %d = %#x, want 0x80", r, vals[0])
		}
	}
}

func TestReverseChain(t *testing.T) {
	m, bus := newTestMatrix(t, 3, true)
	if err := m.Render([]int{8}, false, false); err != nil {
		t.Fatal(err)
	}
	txs := bus.take()
	// Chip 0's byte travels last when the chain is reversed.
	want := []byte{0x01, 0x00, 0x01, 0x00, 0x01, 0x80}
	if !bytes.Equal(txs[0], want) {
		t.Errorf("tx = % x, want % x", txs[0], want)
	}
}

func TestReversePairs(t *testing.T) {
	tests := []struct{ in, want []byte }{
		{[]byte{1, 2}, []byte{1, 2}},
		{[]byte{1, 2, 3, 4}, []byte{3, 4, 1, 2}},
		{[]byte{1, 2, 3, 4, 5, 6}, []byte{5, 6, 3, 4, 1, 2}},
	}
	for _, tt := range tests {
		got := bytes.Clone(tt.in)
		reversePairs(got)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("reversePairs(% x) = % x, want % x", tt.in, got, tt.want)
		}
	}
}

func TestSetIntensity(t *testing.T) {
	m, bus := newTestMatrix(t, 2, false)
	if err := m.SetIntensity(-4); err != nil {
		t.Fatal(err)
	}
	txs := bus.take()
	if len(txs) != 1 || !bytes.Equal(txs[0], []byte{0x0A, 0, 0x0A, 0}) {
		t.Errorf("SetIntensity(-4) sent % x", txs)
	}
}

func TestMatrixBusFailure(t *testing.T) {
	m, bus := newTestMatrix(t, 1, false)
	bus.setFailing(true)
	if err := m.Render([]int{1}, false, false); !errors.Is(err, ErrDevice) {
		t.Errorf("Render error = %v, want ErrDevice", err)
	}
}

func TestMatrixClose(t *testing.T) {
	m, bus := newTestMatrix(t, 2, false)
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	txs := bus.take()
	if len(txs) != Rows+1 || !bytes.Equal(txs[Rows], []byte{0x0C, 0, 0x0C, 0}) {
		t.Errorf("Close sent % x, want a clear followed by shutdown", txs)
	}
	if !bus.closed {
		t.Error("bus not closed")
	}
	if err := m.Render([]int{1}, false, false); !errors.Is(err, ErrClosed) {
		t.Errorf("Render after Close error = %v, want ErrClosed", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestToHeight(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{0.06, 0},
		{0.07, 1},
		{0.5, 4},
		{0.99, 8},
		{1, 8},
		{1.5, 8},
		{-0.2, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := ToHeight(tt.in); got != tt.want {
			t.Errorf("ToHeight(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPattern(t *testing.T) {
	dst := make([]int, 4)
	for step, wantCol := range []int{0, 1, 2, 3, 0} {
		Pattern(dst, step)
		for x, h := range dst {
			want := 0
			if x == wantCol {
				want = Rows
			}
			if h != want {
				t.Fatalf("step %d: dst = %v, want column %d lit", step, dst, wantCol)
			}
		}
	}
}

// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

/*
Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Value Count       | uint16         | 2            | Number of floats (N)    |
| Values            | []float32      | N * 4        | Bands or magnitudes     |
+-----------------------------------------------------------------------------+
*/

// HeaderSize is the number of bytes before the values.
const HeaderSize = 4 + 8 + 2

// ErrShortPacket is returned by Decode for truncated packets.
var ErrShortPacket = errors.New("udp packet truncated")

// Packet is a decoded datagram.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Values    []float32
}

// Encoder packs values into datagrams, reusing its buffers between calls.
type Encoder struct {
	buf bytes.Buffer
	f32 []float32
}

// Encode packs the header and values. At most math.MaxUint16 values are
// written. The returned slice is valid until the next call.
func (e *Encoder) Encode(seq uint32, timestamp int64, values []float64) []byte {
	if len(values) > math.MaxUint16 {
		values = values[:math.MaxUint16]
	}
	if cap(e.f32) < len(values) {
		e.f32 = make([]float32, len(values))
	}
	e.f32 = e.f32[:len(values)]
	for i, v := range values {
		e.f32[i] = float32(v)
	}

	e.buf.Reset()
	e.buf.Grow(HeaderSize + 4*len(values))
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], seq)
	binary.BigEndian.PutUint64(hdr[4:12], uint64(timestamp))
	binary.BigEndian.PutUint16(hdr[12:14], uint16(len(values)))
	e.buf.Write(hdr[:])

	var word [4]byte
	for _, f := range e.f32 {
		binary.BigEndian.PutUint32(word[:], math.Float32bits(f))
		e.buf.Write(word[:])
	}
	return e.buf.Bytes()
}

// Decode parses a datagram produced by Encode.
func Decode(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	p := Packet{
		Seq:       binary.BigEndian.Uint32(b[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:12])),
	}
	n := int(binary.BigEndian.Uint16(b[12:14]))
	body := b[HeaderSize:]
	if len(body) < 4*n {
		return Packet{}, fmt.Errorf("%w: want %d values, have %d bytes", ErrShortPacket, n, len(body))
	}
	p.Values = make([]float32, n)
	for i := range p.Values {
		p.Values[i] = math.Float32frombits(binary.BigEndian.Uint32(body[4*i:]))
	}
	return p, nil
}

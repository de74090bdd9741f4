// SPDX-License-Identifier: MIT
package udp

import (
	"sync"

	"audioviz/internal/transport"
)

// Payload selects which frame field is packed into datagrams.
type Payload int

const (
	PayloadBands Payload = iota
	PayloadMagnitudes
)

// ParsePayload maps "bands" and "magnitudes" to a Payload.
func ParsePayload(name string) Payload {
	if name == "magnitudes" {
		return PayloadMagnitudes
	}
	return PayloadBands
}

// Transport packs frames into datagrams and sends them through a Sender.
type Transport struct {
	mu      sync.Mutex
	sender  *Sender
	enc     Encoder
	payload Payload
	seq     uint32
}

// NewTransport dials target and returns a Transport sending payload.
func NewTransport(target string, payload Payload) (*Transport, error) {
	s, err := NewSender(target)
	if err != nil {
		return nil, err
	}
	return &Transport{sender: s, payload: payload}, nil
}

// Send packs and transmits one frame.
func (t *Transport) Send(frame transport.Frame) error {
	values := frame.Bands
	if t.payload == PayloadMagnitudes {
		values = frame.Magnitudes
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	return t.sender.Send(t.enc.Encode(t.seq, frame.Timestamp.UnixNano(), values))
}

// Close closes the underlying socket.
func (t *Transport) Close() error {
	return t.sender.Close()
}

var _ transport.Transport = (*Transport)(nil)

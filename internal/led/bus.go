// SPDX-License-Identifier: MIT
package led

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	// ErrDevice reports a bus that could not be opened or written.
	ErrDevice = errors.New("led: device error")
	// ErrClosed is returned by operations on a closed matrix or bus.
	ErrClosed = errors.New("led: closed")
)

// Bus is a write-only synchronous serial link to the chip chain. Each Tx is
// one transaction with chip select held for its whole length.
type Bus interface {
	Tx(w []byte) error
	Close() error
}

var hostInit = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// SPIBus drives the chain through a periph SPI port.
type SPIBus struct {
	port spi.PortCloser
	conn spi.Conn
}

// OpenSPI opens the named port ("/dev/spidev0.0" or "SPI0.0") in mode 0 with
// 8-bit words at speedHz.
func OpenSPI(name string, speedHz int64) (*SPIBus, error) {
	if err := hostInit(); err != nil {
		return nil, fmt.Errorf("%w: host init: %v", ErrDevice, err)
	}

	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDevice, name, err)
	}

	conn, err := port.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: configure %s: %v", ErrDevice, name, err)
	}

	return &SPIBus{port: port, conn: conn}, nil
}

// Tx writes w in a single transaction.
func (b *SPIBus) Tx(w []byte) error {
	if b.conn == nil {
		return ErrClosed
	}
	if err := b.conn.Tx(w, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}
	return nil
}

// Close releases the port.
func (b *SPIBus) Close() error {
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port, b.conn = nil, nil
	return err
}

var _ Bus = (*SPIBus)(nil)

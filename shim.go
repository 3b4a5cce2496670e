// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package dash7

import (
	"errors"
	"fmt"
	"time"
)

// SPI is a full-duplex SPI device.
type SPI interface {
	Tx(w, r []byte) error
	Speed(hz int64) error
	Configure(mode int, bits int) error
	Close() error
}

const (
	SPIMode0 = 0x0 // CPOL=0, CPHA=0
	SPIMode1 = 0x1 // CPOL=0, CPHA=1
	SPIMode2 = 0x2 // CPOL=1, CPHA=0
	SPIMode3 = 0x3 // CPOL=1, CPHA=1
)

// GPIO is a digital pin. Edge detection is armed by In and consumed by WaitForEdge.
type GPIO interface {
	In(edge int) error
	Read() int
	WaitForEdge(timeout time.Duration) bool
	Out(level int)
	Number() int
}

const (
	GpioLow  = 0
	GpioHigh = 1
)

const (
	GpioNoEdge = iota
	GpioRisingEdge
	GpioFallingEdge
	GpioBothEdges
)

// Host opens devices on one hardware access library.
type Host interface {
	SPI(name string, hz int64) (SPI, error)
	GPIO(name string) (GPIO, error)
	Close() error
}

// ErrUnknownHost is returned by OpenHost for a backend it does not know.
var ErrUnknownHost = errors.New("dash7: unknown host backend")

// OpenHost initializes the named backend, embd or periph.
func OpenHost(name string) (Host, error) {
	switch name {
	case "embd":
		return openEmbd()
	case "periph":
		return openPeriph()
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownHost, name)
}

func checkEdge(edge int) error {
	if edge < GpioNoEdge || edge > GpioBothEdges {
		return fmt.Errorf("dash7: bad edge %d", edge)
	}
	return nil
}

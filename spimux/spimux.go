// Copyright 2017 by Thorsten von Eicken, see LICENSE file

// Package spimux shares one SPI chip select between two radios.
package spimux

import (
	"sync"

	"github.com/tve/dash7"
)

// Conn is one of the two devices behind a multiplexed chip select.
//
// A demux on the CS line, for example a 74LVC1G19 with the SPI CS on E, the select pin on A and
// the two device chip selects on Y0 and Y1, lets a gpio pin steer the chip select. Tx sets the
// select pin and then runs the transfer. A pull-down on A keeps both devices deselected while
// the select pin floats.
//
// Speed and configuration are shared by both devices.
type Conn struct {
	shared    *shared
	dash7.SPI            // the bus with the shared chip select
	selPin    dash7.GPIO // pin to select between the two devices
	sel       int        // select level for this device
	closed    bool
}

type shared struct {
	sync.Mutex // one transfer at a time on the shared bus
	open       int
}

// New returns two connections for the bus, the first one selected by a low level on selPin,
// the second by a high level.
func New(bus dash7.SPI, selPin dash7.GPIO) (*Conn, *Conn) {
	sh := &shared{open: 2}
	return &Conn{sh, bus, selPin, dash7.GpioLow, false},
		&Conn{sh, bus, selPin, dash7.GpioHigh, false}
}

// Tx sets the select pin for this device and calls the underlying Tx.
func (c *Conn) Tx(w, r []byte) error {
	c.shared.Lock()
	defer c.shared.Unlock()

	c.selPin.Out(c.sel)
	return c.SPI.Tx(w, r)
}

// Close closes the bus once both connections are closed.
func (c *Conn) Close() error {
	c.shared.Lock()
	defer c.shared.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.shared.open--
	if c.shared.open == 0 {
		return c.SPI.Close()
	}
	return nil
}

// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package dash7

import (
	"errors"
	"fmt"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	pspi "periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

type periphHost struct{}

func openPeriph() (Host, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("dash7: periph: %w", err)
	}
	return periphHost{}, nil
}

// SPI opens a port by name, an empty name picks the first one registered.
func (periphHost) SPI(name string, hz int64) (SPI, error) {
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("dash7: spi %q: %w", name, err)
	}
	return &periphSPI{port: p, hz: hz, mode: SPIMode0, bits: 8}, nil
}

func (periphHost) GPIO(name string) (GPIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("dash7: no pin %s", name)
	}
	return periphGPIO{p}, nil
}

func (periphHost) Close() error { return nil }

//===== SPI shim for periph

// periphSPI connects on the first Tx so Speed and Configure can be called in any order.
type periphSPI struct {
	port pspi.PortCloser
	conn pspi.Conn
	hz   int64
	mode int
	bits int
}

func (s *periphSPI) Tx(w, r []byte) error {
	if s.conn == nil {
		c, err := s.port.Connect(physic.Frequency(s.hz)*physic.Hertz, pspi.Mode(s.mode), s.bits)
		if err != nil {
			return err
		}
		s.conn = c
	}
	return s.conn.Tx(w, r)
}

func (s *periphSPI) Speed(hz int64) error {
	if s.conn != nil && hz != s.hz {
		return errors.New("SPI: speed must be set before the first transfer")
	}
	s.hz = hz
	return nil
}

func (s *periphSPI) Configure(mode int, bits int) error {
	if s.conn != nil && (mode != s.mode || bits != s.bits) {
		return errors.New("SPI: mode must be set before the first transfer")
	}
	s.mode, s.bits = mode, bits
	return nil
}

func (s *periphSPI) Close() error { return s.port.Close() }

//===== GPIO shim for periph

type periphGPIO struct {
	p pgpio.PinIO
}

func (g periphGPIO) In(edge int) error {
	if err := checkEdge(edge); err != nil {
		return err
	}
	e := []pgpio.Edge{pgpio.NoEdge, pgpio.RisingEdge, pgpio.FallingEdge, pgpio.BothEdges}[edge]
	return g.p.In(pgpio.PullNoChange, e)
}

func (g periphGPIO) Read() int {
	if g.p.Read() == pgpio.High {
		return GpioHigh
	}
	return GpioLow
}

func (g periphGPIO) WaitForEdge(timeout time.Duration) bool { return g.p.WaitForEdge(timeout) }

func (g periphGPIO) Out(level int) { g.p.Out(pgpio.Level(level != GpioLow)) }

func (g periphGPIO) Number() int { return g.p.Number() }

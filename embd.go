// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package dash7

import (
	"errors"
	"fmt"
	"time"

	"github.com/kidoman/embd"
)

// embdHost uses embd, the board driver must be linked in by the command, for example
// with a blank import of github.com/kidoman/embd/host/chip.
type embdHost struct{}

func openEmbd() (Host, error) {
	if err := embd.InitGPIO(); err != nil {
		return nil, fmt.Errorf("dash7: embd gpio: %w", err)
	}
	if err := embd.InitSPI(); err != nil {
		embd.CloseGPIO()
		return nil, fmt.Errorf("dash7: embd spi: %w", err)
	}
	return embdHost{}, nil
}

// SPI opens bus 0 chip select 0, embd offers nothing else on the boards we run on.
func (embdHost) SPI(name string, hz int64) (SPI, error) {
	if name != "" {
		return nil, fmt.Errorf("dash7: embd only has the default SPI bus, not %q", name)
	}
	s := &spi{embd.NewSPIBus(embd.SPIMode0, 0, int(hz), 8, 0), hz}
	return s, nil
}

func (embdHost) GPIO(name string) (GPIO, error) {
	g, err := embd.NewDigitalPin(name)
	if err != nil {
		return nil, fmt.Errorf("dash7: pin %s: %w", name, err)
	}
	return &gpio{p: g, dir: embd.In, edge: make(chan struct{}, 1)}, nil
}

func (embdHost) Close() error {
	embd.CloseSPI()
	return embd.CloseGPIO()
}

//===== SPI shim for embd

type spi struct {
	embd.SPIBus
	hz int64
}

func (s *spi) Tx(w, r []byte) error {
	copy(r, w)
	return s.TransferAndReceiveData(r)
}

// Speed cannot change the clock of an open embd bus.
func (s *spi) Speed(hz int64) error {
	if hz != s.hz {
		return fmt.Errorf("SPI: sorry, bus is fixed at %dHz", s.hz)
	}
	return nil
}

func (s *spi) Configure(mode int, bits int) error {
	if mode != SPIMode0 {
		return errors.New("SPI: sorry, only SPI mode 0 supported")
	}
	if bits != 8 {
		return errors.New("SPI: sorry, only 8-bit mode supported")
	}
	return nil
}

//===== GPIO shim for embd

type gpio struct {
	p    embd.DigitalPin
	dir  embd.Direction
	edge chan struct{}
}

func (g *gpio) In(edge int) error {
	if err := checkEdge(edge); err != nil {
		return err
	}
	if err := g.p.SetDirection(embd.In); err != nil {
		return err
	}
	g.dir = embd.In
	if edge == GpioNoEdge {
		return g.p.StopWatching()
	}
	e := []embd.Edge{embd.EdgeNone, embd.EdgeRising, embd.EdgeFalling, embd.EdgeBoth}[edge]
	return g.p.Watch(e, g.edgeCB)
}

func (g *gpio) Read() int {
	v, _ := g.p.Read()
	return v
}

func (g *gpio) WaitForEdge(timeout time.Duration) bool {
	to := time.NewTimer(timeout)
	defer to.Stop()
	select {
	case <-g.edge:
		return true
	case <-to.C:
		return false
	}
}

func (g *gpio) Out(level int) {
	if g.dir != embd.Out {
		g.p.SetDirection(embd.Out)
		g.dir = embd.Out
	}
	g.p.Write(level)
}

func (g *gpio) Number() int {
	return g.p.N()
}

func (g *gpio) edgeCB(embd.DigitalPin) {
	select {
	case g.edge <- struct{}{}:
	default:
	}
}

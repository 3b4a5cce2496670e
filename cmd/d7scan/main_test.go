// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package main

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tve/dash7/codec"
	"github.com/tve/dash7/phymac"
	"github.com/tve/dash7/radio"
)

// noisyHW reports an RSSI that depends on the channel it is tuned to.
type noisyHW struct {
	center byte
	noise  map[byte]int
}

func (h *noisyHW) ProgramModem(class byte, fec bool)        {}
func (h *noisyHW) ProgramFrequency(center byte)             { h.center = center }
func (h *noisyHW) ProgramPower(dBm int)                     {}
func (h *noisyHW) Calibrate()                               {}
func (h *noisyHW) Sleep()                                   {}
func (h *noisyHW) Standby()                                 {}
func (h *noisyHW) StartRX()                                 {}
func (h *noisyHW) StartTX()                                 {}
func (h *noisyHW) RSSI() int                                { return h.noise[h.center] }
func (h *noisyHW) Delay(time.Duration)                      {}
func (h *noisyHW) SetSync(c radio.SyncClass)                {}
func (h *noisyHW) SetPacket(m radio.PacketMode, length int) {}
func (h *noisyHW) SetPreamble(n int)                        {}
func (h *noisyHW) SetFIFOThreshold(n int)                   {}
func (h *noisyHW) FIFOSize() int                            { return 64 }
func (h *noisyHW) EnableIRQ(m radio.IRQ)                    {}
func (h *noisyHW) DisableIRQ(m radio.IRQ)                   {}
func (h *noisyHW) FIFO() codec.FIFO                         { return &codec.Buffer{} }

func TestSweep(t *testing.T) {
	hw := &noisyHW{noise: map[byte]int{2: -110, 4: -70}}
	table := phymac.StaticTable{
		{SpectrumID: 0x02, CCAThr: phymac.DBmToRSSI(-90)},
		{SpectrumID: 0x14, CCAThr: phymac.DBmToRSSI(-85)},
	}
	r := radio.New(hw, table, nil)
	run := func(ctx context.Context, fn func(r *radio.Radio)) error {
		fn(r)
		return nil
	}

	samples, err := sweep(context.Background(), run, []byte{0x02, 0x14, 0x33})
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, Sample{Channel: 0x02, RSSI: -110, CCAThr: -90, Clear: true}, samples[0])
	assert.Equal(t, Sample{Channel: 0x14, RSSI: -70, CCAThr: -85, Clear: false}, samples[1])
	assert.ErrorIs(t, samples[2].Err, radio.BadChannel)

	var buf bytes.Buffer
	report(&buf, samples)
	assert.Equal(t,
		"0x02  -110 dBm  cca  -90 dBm  clear\n"+
			"0x14   -70 dBm  cca  -85 dBm  busy\n"+
			"0x33  radio: bad channel\n",
		buf.String())
}

func TestSweepStopped(t *testing.T) {
	stopped := errors.New("stopped")
	run := func(ctx context.Context, fn func(r *radio.Radio)) error { return stopped }
	samples, err := sweep(context.Background(), run, []byte{0x02})
	assert.ErrorIs(t, err, stopped)
	assert.Empty(t, samples)
}

// regSPI answers register reads from a map.
type regSPI struct {
	regs map[byte]byte
	err  error
}

func (s *regSPI) Tx(w, r []byte) error {
	if s.err != nil {
		return s.err
	}
	r[1] = s.regs[w[0]&0x7f]
	return nil
}
func (s *regSPI) Speed(hz int64) error               { return nil }
func (s *regSPI) Configure(mode int, bits int) error { return nil }
func (s *regSPI) Close() error                       { return nil }

func TestProbe(t *testing.T) {
	mode, version, err := probe(&regSPI{regs: map[byte]byte{0x01: 0x04, 0x10: 0x24}})
	require.NoError(t, err)
	assert.Equal(t, byte(0x04), mode)
	assert.Equal(t, byte(0x24), version)

	_, _, err = probe(&regSPI{err: errors.New("bus")})
	assert.Error(t, err)
}

// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1231

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tve/dash7/radio"
)

// fakeChip models the registers, the FIFO and the DIO0 PLL-lock interrupt of an sx1231.
type fakeChip struct {
	mu     sync.Mutex
	regs   [0x80]byte
	txFIFO []byte // bytes written to the FIFO
	rxFIFO []byte // bytes waiting to be read
	dio0   *fakePin
	dead   bool // answer nothing, as if no chip was there
	fail   error
}

func (c *fakeChip) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	if c.dead {
		return nil
	}
	addr := w[0] & 0x7f
	inc := func(i int) byte {
		if addr == REG_FIFO {
			return addr
		}
		return addr + byte(i)
	}
	if w[0]&0x80 != 0 {
		for i, b := range w[1:] {
			c.write(inc(i), b)
		}
		return nil
	}
	for i := 1; i < len(r); i++ {
		r[i] = c.read(inc(i - 1))
	}
	return nil
}

func (c *fakeChip) write(a, b byte) {
	switch a {
	case REG_FIFO:
		c.txFIFO = append(c.txFIFO, b)
	case REG_OPMODE:
		c.regs[a] = b
		c.regs[REG_IRQFLAGS1] |= IRQ1_MODEREADY
	case REG_DIOMAPPING1:
		c.regs[a] = b
		if b&0xC0 == DIO0_FS_PLLLOCK && c.regs[REG_OPMODE]&0x1c == MODE_FS {
			c.dio0.edge()
		}
	case REG_IRQFLAGS2:
		if b&IRQ2_FIFOOVERRUN != 0 {
			c.txFIFO, c.rxFIFO = nil, nil
		}
	case REG_RSSICONFIG:
		c.regs[a] = b | RSSIDONE
	case REG_OSC1:
		c.regs[a] = b | RCCALDONE
	default:
		c.regs[a] = b
	}
}

func (c *fakeChip) read(a byte) byte {
	switch a {
	case REG_FIFO:
		if len(c.rxFIFO) == 0 {
			return 0
		}
		b := c.rxFIFO[0]
		c.rxFIFO = c.rxFIFO[1:]
		return b
	case REG_IRQFLAGS2:
		n := len(c.txFIFO)
		if c.regs[REG_OPMODE]&0x1c == MODE_RECEIVE {
			n = len(c.rxFIFO)
		}
		var f byte
		if n > 0 {
			f |= IRQ2_FIFONOTEMPTY
		}
		if n > int(c.regs[REG_FIFOTHRESH]&0x7f) {
			f |= IRQ2_FIFOLEVEL
		}
		if n >= fifoSize {
			f |= IRQ2_FIFOFULL
		}
		return f
	}
	return c.regs[a]
}

// sent empties the TX FIFO as if the bytes went out.
func (c *fakeChip) sent() {
	c.mu.Lock()
	c.txFIFO = nil
	c.mu.Unlock()
}

func (c *fakeChip) reg(a byte) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regs[a]
}

func (c *fakeChip) Speed(hz int64) error               { return nil }
func (c *fakeChip) Configure(mode int, bits int) error { return nil }
func (c *fakeChip) Close() error                       { return nil }

type fakePin struct {
	level atomic.Int32
	edges chan struct{}
}

func newPin() *fakePin { return &fakePin{edges: make(chan struct{}, 1)} }

func (p *fakePin) edge() {
	select {
	case p.edges <- struct{}{}:
	default:
	}
}

// raise sets the pin high and signals the edge.
func (p *fakePin) raise() {
	p.level.Store(1)
	p.edge()
}

func (p *fakePin) In(edge int) error { return nil }
func (p *fakePin) Read() int         { return int(p.level.Load()) }
func (p *fakePin) Out(level int)     { p.level.Store(int32(level)) }
func (p *fakePin) Number() int       { return 42 }

func (p *fakePin) WaitForEdge(timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-p.edges:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-p.edges:
		return true
	case <-t.C:
		return false
	}
}

func newTestRadio(t *testing.T, opts RadioOpts) (*Radio, *fakeChip, *fakePin, *fakePin) {
	t.Helper()
	dio0, dio1 := newPin(), newPin()
	chip := &fakeChip{dio0: dio0}
	r, err := New(chip, dio0, dio1, opts)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, chip, dio0, dio1
}

func recvEvent(t *testing.T, r *Radio) radio.Event {
	t.Helper()
	select {
	case ev := <-r.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	return 0
}

func TestNew(t *testing.T) {
	r, chip, _, _ := newTestRadio(t, RadioOpts{Power: 10})
	require.NoError(t, r.Error())
	assert.Equal(t, byte(MODE_STANDBY), chip.reg(REG_OPMODE))
	assert.Equal(t, byte(0x88), chip.reg(REG_SYNCCONFIG))
	assert.Equal(t, byte(0xE6), chip.reg(REG_SYNCVALUE1))
	assert.Equal(t, byte(0xD0), chip.reg(REG_SYNCVALUE1+1))
	assert.Equal(t, byte(0x9C), chip.reg(REG_PALEVEL))
	assert.Equal(t, byte(0x00), chip.reg(REG_DIOMAPPING1))
	assert.Equal(t, byte(0x00), chip.reg(REG_PKTCONFIG1))
	// 55555bps
	assert.Equal(t, byte(0x02), chip.reg(REG_BITRATEMSB))
	assert.Equal(t, byte(0x40), chip.reg(REG_BITRATEMSB+1))
	assert.Equal(t, 66, r.FIFOSize())
}

func TestNewNoChip(t *testing.T) {
	dio0 := newPin()
	_, err := New(&fakeChip{dio0: dio0, dead: true}, dio0, newPin(), RadioOpts{})
	assert.ErrorContains(t, err, "cannot sync")

	_, err = New(&fakeChip{dio0: dio0, fail: errors.New("bus gone")}, dio0, newPin(), RadioOpts{})
	assert.ErrorContains(t, err, "bus gone")
}

func TestNoInterrupt(t *testing.T) {
	dio0 := newPin()
	chip := &fakeChip{dio0: newPin()} // edges go to a pin nobody watches
	_, err := New(chip, dio0, newPin(), RadioOpts{})
	assert.ErrorContains(t, err, "interrupts from radio do not work")
}

func TestProgramFrequency(t *testing.T) {
	r, chip, _, _ := newTestRadio(t, RadioOpts{})
	r.ProgramFrequency(3) // 433.704MHz
	assert.Equal(t, byte(0x6C), chip.reg(REG_FRFMSB))
	assert.Equal(t, byte(0x6D), chip.reg(REG_FRFMSB+1))
	assert.Equal(t, byte(0x00), chip.reg(REG_FRFMSB+2))
	assert.Equal(t, byte(MODE_STANDBY), chip.reg(REG_OPMODE), "mode restored")
}

func TestProgramPower(t *testing.T) {
	tests := []struct {
		boost bool
		dBm   int
		reg   byte
	}{
		{false, 10, 0x9C},
		{false, 20, 0x9F},
		{false, -30, 0x80},
		{true, 10, 0x40 + 28},
		{true, 15, 0x60 + 29},
		{true, 20, 0x60 + 31},
		{true, -10, 0x40 + 16},
	}
	for _, tt := range tests {
		r, chip, _, _ := newTestRadio(t, RadioOpts{PABoost: tt.boost})
		r.ProgramPower(tt.dBm)
		assert.Equal(t, tt.reg, chip.reg(REG_PALEVEL), "boost=%v %ddBm", tt.boost, tt.dBm)
	}
}

func TestHighPowerTX(t *testing.T) {
	r, chip, _, _ := newTestRadio(t, RadioOpts{PABoost: true})
	r.ProgramPower(20)
	r.StartTX()
	assert.Equal(t, byte(0x5D), chip.reg(REG_TESTPA1))
	r.Standby()
	assert.Equal(t, byte(0x55), chip.reg(REG_TESTPA1))
}

func TestSyncWords(t *testing.T) {
	r, chip, _, _ := newTestRadio(t, RadioOpts{})
	r.ProgramModem(2, true)
	r.SetSync(radio.SyncBackground)
	assert.Equal(t, byte(0x19), chip.reg(REG_SYNCVALUE1))
	assert.Equal(t, byte(0x2F), chip.reg(REG_SYNCVALUE1+1))
	assert.Equal(t, byte(0x00), chip.reg(REG_BITRATEMSB))
	assert.Equal(t, byte(0xA0), chip.reg(REG_BITRATEMSB+1), "200kbps")
}

func TestRSSIAndCalibrate(t *testing.T) {
	r, chip, _, _ := newTestRadio(t, RadioOpts{})
	chip.mu.Lock()
	chip.regs[REG_RSSIVALUE] = 180
	chip.mu.Unlock()
	r.StartRX()
	assert.Equal(t, -90, r.RSSI())
	r.Standby()
	r.Calibrate()
	assert.NoError(t, r.Error())
}

func TestReadFIFO(t *testing.T) {
	r, chip, _, _ := newTestRadio(t, RadioOpts{})
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i + 1)
	}
	r.SetFIFOThreshold(8)
	r.StartRX()
	chip.mu.Lock()
	chip.rxFIFO = append([]byte(nil), data...)
	chip.mu.Unlock()

	f := r.FIFO()
	assert.Equal(t, 8, f.Len(), "threshold tells how much is there")
	var got []byte
	buf := make([]byte, 32)
	for f.Len() > 0 {
		n := f.Read(buf)
		got = append(got, buf[:n]...)
	}
	assert.Equal(t, data, got)
	assert.Zero(t, f.Read(buf))
}

func TestWriteFIFO(t *testing.T) {
	r, chip, _, _ := newTestRadio(t, RadioOpts{})
	f := r.FIFO()
	assert.Equal(t, 66, f.Room())
	assert.Equal(t, 66, f.Write(make([]byte, 100)))
	assert.Zero(t, f.Room())
	assert.Zero(t, f.Write([]byte{1}))
	assert.Len(t, chip.txFIFO, 66)

	r.Standby()
	assert.Empty(t, chip.txFIFO, "standby clears the FIFO")
	assert.Equal(t, 66, f.Room())
}

func TestThresholdRegister(t *testing.T) {
	r, chip, _, _ := newTestRadio(t, RadioOpts{})
	r.SetFIFOThreshold(16)
	assert.Equal(t, byte(0x80|15), chip.reg(REG_FIFOTHRESH), "rx: event at 16 bytes")
	r.StartTX()
	assert.Equal(t, byte(0x80|16), chip.reg(REG_FIFOTHRESH))
	r.SetFIFOThreshold(65)
	assert.Equal(t, byte(0x80|txLevelMax), chip.reg(REG_FIFOTHRESH))
}

func TestSyncEvent(t *testing.T) {
	r, chip, dio0, _ := newTestRadio(t, RadioOpts{})
	r.EnableIRQ(radio.IRQSync)
	r.StartRX()
	assert.Equal(t, byte(DIO0_RX_SYNC), chip.reg(REG_DIOMAPPING1))
	dio0.raise()
	assert.Equal(t, radio.EvSync, recvEvent(t, r))
}

func TestFIFOEvents(t *testing.T) {
	r, _, _, dio1 := newTestRadio(t, RadioOpts{})
	r.StartRX()
	dio1.level.Store(1)
	r.EnableIRQ(radio.IRQFIFO)
	assert.Equal(t, radio.EvFIFO, recvEvent(t, r), "level already reached")

	r.DisableIRQ(radio.IRQFIFO)
	r.SetPacket(radio.PacketFixed, 5)
	r.EnableIRQ(radio.IRQPacketDone)
	assert.Equal(t, byte(4), r.level, "threshold moved to the packet end")
	assert.Equal(t, radio.EvPacketDone, recvEvent(t, r))

	r.Standby()
	dio1.level.Store(0)
	r.EnableIRQ(radio.IRQFIFO)
	r.StartTX()
	assert.Equal(t, radio.EvFIFO, recvEvent(t, r), "tx refill on a low level")
}

func TestPacketSent(t *testing.T) {
	r, chip, dio0, _ := newTestRadio(t, RadioOpts{})
	r.SetPacket(radio.PacketFixed, 9)
	assert.Equal(t, byte(9), chip.reg(REG_PAYLOADLEN))
	r.EnableIRQ(radio.IRQTxDone)
	r.StartTX()
	assert.Equal(t, byte(DIO0_TX_PKTSENT), chip.reg(REG_DIOMAPPING1))
	dio0.raise()
	assert.Equal(t, radio.EvTxDone, recvEvent(t, r))
}

func TestInfiniteTxDone(t *testing.T) {
	r, chip, _, _ := newTestRadio(t, RadioOpts{})
	r.SetPacket(radio.PacketInfinite, 0)
	r.FIFO().Write([]byte{1, 2, 3})
	r.StartTX()
	r.EnableIRQ(radio.IRQTxDone)
	select {
	case ev := <-r.Events():
		t.Fatalf("early %s", ev)
	case <-time.After(5 * time.Millisecond):
	}
	chip.sent()
	assert.Equal(t, radio.EvTxDone, recvEvent(t, r))
}

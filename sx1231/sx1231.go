// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// The SX1231 package drives a HopeRF RFM69 radio connected to an SPI bus as the transceiver of
// a DASH7 link layer.
//
// The RFM69 modules use a Semtech SX1231 or SX1231H radio chip and this package should work
// fine with other radio modules using the same chip. The only real difference will be the power
// output section where different modules use different output stage configurations.
//
// The link layer's state machine does all the packet handling, this driver only moves registers
// and bytes. The chip runs in FSK packet mode with the CRC, whitening and address filtering
// turned off and, except for fixed-length background frames, with unlimited packet length:
// frame lengths, continuation and CRCs are handled by the codec above.
//
// Interrupts come in on two pins. DIO0 signals sync detection in RX and packet sent in TX, DIO1
// follows the FIFO level. A goroutine per pin converts edges into radio.Event values on the
// channel returned by Events, the caller delivers them to the state machine. The chip's FIFO
// has no byte counter so the driver infers what can be read or written from the FIFO level
// flags and the threshold it programmed.
//
// In general there should be no errors during the radio's operation unless there is a hardware
// failure. SPI errors are recorded and can be retrieved using the Error function; the object
// will not recover and the client has to create a fresh one.
//
// The methods implementing radio.Transceiver must be called from a single goroutine. Events,
// Error and Close may be called from anywhere.
package sx1231

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tve/dash7"
	"github.com/tve/dash7/codec"
	"github.com/tve/dash7/radio"
)

const (
	fifoSize   = 66       // bytes in the chip's FIFO
	txLevelMax = 48       // highest TX refill level, bounds the interrupt rate
	evChanCap  = 16       // events buffered between the pin goroutines and the caller
	noEvent    = -1       // pin raises nothing
	oscHz      = 32000000 // crystal
)

// Radio represents a Semtech SX1231 radio as used in HopeRF's RFM69 modules.
type Radio struct {
	// configuration
	spi     dash7.SPI  // SPI device to access the radio
	dio0    dash7.GPIO // sync / packet sent interrupt
	dio1    dash7.GPIO // FIFO level interrupt
	base    uint32     // frequency of center index 0
	spacing uint32     // distance between center indexes
	paBoost bool       // true: use PA1+PA2 power amp, else PA0
	// state, owned by the goroutine driving the radio
	mode  byte             // current operation mode
	power int              // output power in dBm
	rate  uint32           // bit rate of the current class
	fec   bool             // current channel uses FEC, selects the sync words
	irq   radio.IRQ        // enabled interrupt sources
	pkt   radio.PacketMode // packet mode set by SetPacket
	plen  int              // fixed packet length
	tail  int              // bytes to the end of a packet shortened during reception
	thr   int              // requested FIFO threshold
	level byte             // FIFO threshold register
	fifo  fifo
	// shared with the interrupt goroutines
	sync.Mutex                // guards SPI access and err
	err        error          // persistent error
	ev0, ev1   atomic.Int32   // event raised by DIO0 and DIO1, noEvent if none
	ev1High    atomic.Bool    // DIO1 fires on a high level (RX) or a low level (TX)
	gen        atomic.Uint32  // bumped whenever the interrupt mapping changes
	events     chan radio.Event
	quit       chan struct{}
	wg         sync.WaitGroup
	log        LogPrintf // function to use for logging
}

// RadioOpts contains options used when initializing a Radio.
type RadioOpts struct {
	Base    uint32    // frequency of center index 0 in Hz
	Spacing uint32    // channel spacing in Hz
	PABoost bool      // true: use PA1+PA2, false: use PA0
	Power   int       // initial output power in dBm
	Logger  LogPrintf // function to use for logging
}

// Default band plan, DASH7 in the 433MHz band.
const (
	DefaultBase    = 433056000
	DefaultSpacing = 216000
)

// Class describes the SX1231 configuration for a DASH7 channel class.
//
// The datasheet is somewhat confused and confusing about what Fdev and RxBw really mean.
// Fdev is defined as the deviation between the center freq and the modulated freq, while
// conventionally the frequency deviation fdev is the difference between the 0 and 1 freq's,
// thus the conventional fdev is Fdev*2.
//
// Similarly the RxBw is specified as the single-sided bandwidth while conventionally the
// signal or channel bandwidths are defined using the total bandwidths. The signal bandwidth
// (20dB roll-off) can be approximated by fdev + bit-rate, so RxBw needs to be at least
// Fdev + bitrate/2.
type Class struct {
	Rate    uint32 // bit rate in bits per second
	Fdev    int    // TX frequency deviation in Hz
	Shaping byte   // 0:none, 1:gaussian BT=1, 2:gaussian BT=0.5, 3:gaussian BT=0.3
	RxBw    byte   // value for rxBw register (0x19)
	AfcBw   byte   // value for afcBw register (0x1A)
}

// Classes is indexed by the channel class. Classes 4 to 7 use the settings of class & 3.
var Classes = [4]Class{
	{55555, 50000, 1, 0x42, 0x41},  // base (RxBw=125, AfcBw=250)
	{55555, 50000, 1, 0x42, 0x41},  // legacy
	{200000, 50000, 1, 0x41, 0x40}, // normal (RxBw=250, AfcBw=500)
	{200000, 50000, 1, 0x41, 0x40}, // hi-rate
}

// syncWords is indexed by radio.SyncClass and then by FEC.
var syncWords = [2][2][]byte{
	{{0xE6, 0xD0}, {0xF4, 0x98}}, // foreground
	{{0x0B, 0x67}, {0x19, 0x2F}}, // background
}

// LogPrintf is a function used by the driver to print logging info.
type LogPrintf func(format string, v ...interface{})

// New initializes an sx1231 Radio given an SPI device and the DIO0 and DIO1 pins, and leaves
// the radio in standby on center index 0 of the base class.
//
// The SPI bus must be set to 10Mhz max and mode 0.
func New(dev dash7.SPI, dio0, dio1 dash7.GPIO, opts RadioOpts) (*Radio, error) {
	r := &Radio{
		spi: dev, dio0: dio0, dio1: dio1,
		base:    opts.Base,
		spacing: opts.Spacing,
		paBoost: opts.PABoost,
		mode:    255,
		events:  make(chan radio.Event, evChanCap),
		quit:    make(chan struct{}),
		log:     func(format string, v ...interface{}) {},
	}
	if r.base == 0 {
		r.base = DefaultBase
	}
	if r.spacing == 0 {
		r.spacing = DefaultSpacing
	}
	if opts.Logger != nil {
		r.log = func(format string, v ...interface{}) {
			opts.Logger("sx1231: "+format, v...)
		}
	}
	r.fifo.r = r
	r.ev0.Store(noEvent)
	r.ev1.Store(noEvent)

	// Set SPI parameters.
	if err := dev.Speed(4 * 1000 * 1000); err != nil {
		return nil, fmt.Errorf("sx1231: cannot set speed, %v", err)
	}
	if err := dev.Configure(dash7.SPIMode0, 8); err != nil {
		return nil, fmt.Errorf("sx1231: cannot set mode, %v", err)
	}

	// Try to synchronize communication with the sx1231.
	sync := func(pattern byte) error {
		for n := 10; n > 0; n-- {
			// Doing write transactions explicitly to get OS errors.
			if err := dev.Tx([]byte{REG_SYNCVALUE1 | 0x80, pattern}, []byte{0, 0}); err != nil {
				return fmt.Errorf("sx1231: %s", err)
			}
			// Read same thing back, we hope...
			if r.readReg(REG_SYNCVALUE1) == pattern {
				return nil
			}
		}
		return errors.New("sx1231: cannot sync with chip")
	}
	if err := sync(0xaa); err != nil {
		return nil, err
	}
	if err := sync(0x55); err != nil {
		return nil, err
	}

	r.setMode(MODE_SLEEP)
	r.setMode(MODE_STANDBY)
	r.log("SX1231/SX1231 version %#x", r.readReg(REG_VERSION))

	// Write the configuration into the registers.
	for i := 0; i < len(configRegs)-1; i += 2 {
		r.writeReg(configRegs[i], configRegs[i+1])
	}
	r.mode = 255
	r.setMode(MODE_STANDBY)
	r.level = r.readReg(REG_FIFOTHRESH) & 0x7f

	r.ProgramModem(0, false)
	r.ProgramFrequency(0)
	r.ProgramPower(opts.Power)
	r.SetSync(radio.SyncForeground)

	if err := r.testInterrupt(); err != nil {
		return nil, err
	}
	if err := dio1.In(dash7.GpioBothEdges); err != nil {
		return nil, fmt.Errorf("sx1231: error initializing DIO1 pin: %s", err)
	}

	r.logRegs()
	if err := r.Error(); err != nil {
		return nil, err
	}

	r.wg.Add(2)
	go r.watch(dio0, &r.ev0, func() bool { return true })
	go r.watch(dio1, &r.ev1, r.ev1High.Load)
	return r, nil
}

// testInterrupt configures the radio such that DIO0 rises and checks that the edge arrives.
func (r *Radio) testInterrupt() error {
	for try := 0; ; try++ {
		if err := r.dio0.In(dash7.GpioRisingEdge); err != nil {
			return fmt.Errorf("sx1231: error initializing DIO0 pin: %s", err)
		}
		r.log("Interrupt pin is %v", r.dio0.Read())
		// Verify that we don't have any pending interrupt.
		for r.dio0.WaitForEdge(0) {
			r.log("Interrupt test shows an incorrect pending interrupt")
		}
		// Make the radio produce an interrupt, PLL lock in FS mode.
		r.setMode(MODE_FS)
		r.writeReg(REG_DIOMAPPING1, DIO0_FS_PLLLOCK)
		ok := r.dio0.WaitForEdge(100 * time.Millisecond)
		r.writeReg(REG_DIOMAPPING1, 0)
		r.setMode(MODE_STANDBY)
		for r.dio0.WaitForEdge(0) {
		}
		switch {
		case ok:
			return nil
		case try > 0:
			return fmt.Errorf("sx1231: interrupts from radio do not work, try unexporting gpio%d",
				r.dio0.Number())
		}
		r.dio0.In(dash7.GpioNoEdge)
		time.Sleep(100 * time.Millisecond)
	}
}

// Events returns the channel on which interrupts are delivered.
func (r *Radio) Events() <-chan radio.Event { return r.events }

// Error returns any persistent error that may have been encountered.
func (r *Radio) Error() error {
	r.Lock()
	defer r.Unlock()
	return r.err
}

// Close puts the radio to sleep, stops the interrupt goroutines and closes the SPI device.
func (r *Radio) Close() error {
	close(r.quit)
	r.gen.Add(1)
	r.setMode(MODE_SLEEP)
	r.wg.Wait()
	r.dio0.In(dash7.GpioNoEdge)
	r.dio1.In(dash7.GpioNoEdge)
	return r.spi.Close()
}

//===== radio.Transceiver

// ProgramModem sets bit rate, deviation and bandwidths for a channel class.
func (r *Radio) ProgramModem(class byte, fec bool) {
	params := Classes[int(class)%len(Classes)]
	bw := func(v byte) int {
		return oscHz / (int(16+(v&0x18)>>1) * (1 << ((v & 0x7) + 2)))
	}
	r.log("ProgramModem class %d %dbps, Fdev:%dHz, RxBw:%dHz(%#x), AfcBw:%dHz(%#x) fec:%v",
		class, params.Rate, params.Fdev, bw(params.RxBw), params.RxBw, bw(params.AfcBw),
		params.AfcBw, fec)

	r.rate = params.Rate
	r.fec = fec
	mode := r.mode
	r.setMode(MODE_STANDBY)
	// program bit rate, assume a 32Mhz osc
	var rateVal uint32 = (oscHz + params.Rate/2) / params.Rate
	r.writeReg(REG_BITRATEMSB, byte(rateVal>>8), byte(rateVal&0xff))
	// program frequency deviation
	var fStep float64 = float64(oscHz) / 524288 // 32Mhz osc / 2^19 = 61.03515625 Hz
	fdevVal := uint32((float64(params.Fdev) + fStep/2) / fStep)
	r.writeReg(REG_FDEVMSB, byte(fdevVal>>8), byte(fdevVal&0xFF))
	// program data modulation register, packet mode, fsk
	r.writeReg(REG_DATAMODUL, params.Shaping&0x3)
	// program RX bandwidth and AFC bandwidth
	r.writeReg(REG_RXBW, params.RxBw, params.AfcBw)
	// program AFC offset to be 10% of Fdev
	r.writeReg(REG_TESTAFC, byte(params.Fdev/10/488))
	if r.readReg(REG_AFCCTRL) != 0x00 {
		r.setMode(MODE_FS)            // required to write REG_AFCCTRL, undocumented
		r.writeReg(REG_AFCCTRL, 0x00) // 0->AFC, 20->AFC w/low-beta offset
	}
	r.setMode(mode)
}

// ProgramFrequency tunes to a center frequency index.
func (r *Radio) ProgramFrequency(center byte) {
	freq := r.base + uint32(center&0x0F)*r.spacing
	r.log("ProgramFrequency %d: %dHz", center, freq)

	mode := r.mode
	r.setMode(MODE_STANDBY)
	// Frequency steps are in units of (32,000,000 >> 19) = 61.03515625 Hz
	// use multiples of 64 to avoid multi-precision arithmetic, i.e. 3906.25 Hz
	// due to this, the lower 6 bits of the calculated factor will always be 0
	// this is still 4 ppm, i.e. well below the radio's 32 MHz crystal accuracy
	frf := (freq << 2) / (oscHz >> 11)
	r.writeReg(REG_FRFMSB, byte(frf>>10), byte(frf>>2), byte(frf<<6))
	r.setMode(mode)
}

// ProgramPower configures the output stage for the specified power in dBm.
func (r *Radio) ProgramPower(dbm int) {
	mode := r.mode
	r.setMode(MODE_STANDBY)

	if r.paBoost {
		// rfm69H with external antenna switch.
		dbm = max(-2, min(dbm, 20))
		switch {
		case dbm <= 13:
			r.writeReg(REG_PALEVEL, byte(0x40+18+dbm)) // PA1
		case dbm <= 17:
			r.writeReg(REG_PALEVEL, byte(0x60+14+dbm)) // PA1+PA2
		default:
			r.writeReg(REG_PALEVEL, byte(0x60+11+dbm)) // PA1+PA2+HIGH_POWER
		}
	} else {
		// rfm69 without external antenna switch.
		dbm = max(-18, min(dbm, 13))
		r.writeReg(REG_PALEVEL, byte(0x80+18+dbm)) // PA0
	}
	// Technically the following two lines are for <=17dBm, setMode switches to the high
	// power settings when entering TX.
	r.writeReg(REG_TESTPA1, 0x55)
	r.writeReg(REG_TESTPA2, 0x70)
	r.log("ProgramPower %ddBm", dbm)
	r.power = dbm

	r.setMode(mode)
}

// Calibrate runs the RC oscillator calibration, the radio must be in standby.
func (r *Radio) Calibrate() {
	r.writeReg(REG_OSC1, RCCALSTART)
	for start := time.Now(); time.Since(start) < 10*time.Millisecond; {
		if r.readReg(REG_OSC1)&RCCALDONE != 0 {
			return
		}
	}
	r.setErr(errors.New("sx1231: timeout calibrating RC oscillator"))
}

func (r *Radio) Sleep() {
	r.setMode(MODE_SLEEP)
	r.idle()
}

// Standby stops RX or TX and empties the FIFO.
func (r *Radio) Standby() {
	r.setMode(MODE_STANDBY)
	r.idle()
}

func (r *Radio) idle() {
	r.writeReg(REG_IRQFLAGS2, IRQ2_FIFOOVERRUN)
	r.tail = 0
	r.fifo.reset()
	r.applyDIO()
}

func (r *Radio) StartRX() {
	r.fifo.reset()
	r.setMode(MODE_RECEIVE)
	r.applyDIO()
}

func (r *Radio) StartTX() {
	r.fifo.reset()
	r.setMode(MODE_TRANSMIT)
	r.applyDIO()
}

// RSSI measures the signal strength in dBm, the radio must be receiving.
func (r *Radio) RSSI() int {
	r.writeReg(REG_RSSICONFIG, RSSISTART)
	for start := time.Now(); time.Since(start) < time.Millisecond; {
		if r.readReg(REG_RSSICONFIG)&RSSIDONE != 0 {
			break
		}
	}
	return -int(r.readReg(REG_RSSIVALUE)) / 2
}

// Delay busy-waits for short delays, the RSSI settle time is far below the scheduler's
// resolution.
func (r *Radio) Delay(d time.Duration) {
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	for start := time.Now(); time.Since(start) < d; {
	}
}

// SetSync selects the foreground or background sync word of the current channel's coding.
func (r *Radio) SetSync(c radio.SyncClass) {
	fec := 0
	if r.fec {
		fec = 1
	}
	sync := syncWords[int(c)&1][fec]
	buf := append([]byte{byte(0x80 + ((len(sync) - 1) << 3))}, sync...)
	r.writeReg(REG_SYNCCONFIG, buf...)
}

// SetPacket programs the packet length. Only fixed lengths are known to the chip, variable and
// infinite packets use unlimited length and end in software.
func (r *Radio) SetPacket(m radio.PacketMode, length int) {
	if r.mode == MODE_RECEIVE {
		if m == radio.PacketFixed {
			r.tail = length
			r.applyDIO()
		}
		return
	}
	r.pkt, r.plen, r.tail = m, 0, 0
	if m == radio.PacketFixed {
		r.plen = min(length, 255)
	}
	r.writeReg(REG_PKTCONFIG1, 0x00, byte(r.plen))
}

func (r *Radio) SetPreamble(n int) { r.writeReg(REG_PREAMBLEMSB, byte(n>>8), byte(n)) }

func (r *Radio) SetFIFOThreshold(n int) {
	r.thr = n
	r.applyDIO()
}

func (r *Radio) FIFOSize() int { return fifoSize }

func (r *Radio) EnableIRQ(m radio.IRQ) {
	r.irq |= m
	r.applyDIO()
}

func (r *Radio) DisableIRQ(m radio.IRQ) {
	r.irq &^= m
	r.applyDIO()
}

func (r *Radio) FIFO() codec.FIFO { return &r.fifo }

//===== interrupts

// applyDIO maps the enabled interrupt sources onto the DIO pins for the current mode and
// programs the FIFO threshold. A condition that already holds raises its event right away
// since no edge will come for it.
func (r *Radio) applyDIO() {
	r.gen.Add(1)
	var mapping byte = DIO1_FIFOLEVEL
	ev0, ev1 := int32(noEvent), int32(noEvent)
	level := r.threshold()
	high := true

	switch r.mode {
	case MODE_RECEIVE:
		if r.irq&radio.IRQSync != 0 {
			mapping |= DIO0_RX_SYNC
			ev0 = int32(radio.EvSync)
		}
		switch {
		case r.irq&radio.IRQFIFO != 0:
			ev1 = int32(radio.EvFIFO)
		case r.irq&radio.IRQPacketDone != 0 && r.tail > 0:
			ev1 = int32(radio.EvPacketDone)
			level = byte(min(r.tail-1, fifoSize-1))
		case r.irq&radio.IRQPacketDone != 0 && r.pkt == radio.PacketFixed && ev0 == noEvent:
			mapping |= DIO0_RX_PAYREADY
			ev0 = int32(radio.EvPacketDone)
		}
	case MODE_TRANSMIT:
		high = false
		if r.irq&radio.IRQTxDone != 0 {
			if r.pkt == radio.PacketFixed {
				mapping |= DIO0_TX_PKTSENT
				ev0 = int32(radio.EvTxDone)
			} else {
				r.watchDrain()
			}
		}
		if r.irq&radio.IRQFIFO != 0 {
			ev1 = int32(radio.EvFIFO)
		}
	}

	if level != r.level {
		r.writeReg(REG_FIFOTHRESH, FIFOTHRESH_NOTEMPTY|level)
		r.level = level
		r.fifo.reset()
	}
	r.writeReg(REG_DIOMAPPING1, mapping)
	r.ev1High.Store(high)
	r.ev0.Store(ev0)
	r.ev1.Store(ev1)

	if ev0 != noEvent && r.dio0.Read() == dash7.GpioHigh {
		r.postNow(radio.Event(ev0))
	}
	if ev1 != noEvent && (r.dio1.Read() == dash7.GpioHigh) == high {
		r.postNow(radio.Event(ev1))
	}
}

// threshold converts the requested FIFO threshold to the register value. FifoLevel is set
// while the FIFO holds more bytes than the register value.
func (r *Radio) threshold() byte {
	n := r.thr - 1
	if r.mode == MODE_TRANSMIT {
		n = min(r.thr, txLevelMax)
	}
	return byte(max(0, min(n, fifoSize-1)))
}

// watch converts edges on a DIO pin into events.
func (r *Radio) watch(pin dash7.GPIO, ev *atomic.Int32, high func() bool) {
	defer r.wg.Done()
	for {
		select {
		case <-r.quit:
			return
		default:
		}
		if !pin.WaitForEdge(100 * time.Millisecond) {
			continue
		}
		if (pin.Read() == dash7.GpioHigh) != high() {
			continue
		}
		if e := ev.Load(); e != noEvent {
			r.post(radio.Event(e))
		}
	}
}

// watchDrain raises EvTxDone once an unlimited-length packet has left the FIFO, the chip
// has no packet sent interrupt for it.
func (r *Radio) watchDrain() {
	gen := r.gen.Load()
	byteTime := time.Second * 8 / time.Duration(r.rate)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for r.gen.Load() == gen {
			if r.readReg(REG_IRQFLAGS2)&IRQ2_FIFONOTEMPTY == 0 {
				time.Sleep(2 * byteTime) // shift register
				if r.gen.Load() == gen {
					r.post(radio.EvTxDone)
				}
				return
			}
			select {
			case <-r.quit:
				return
			case <-time.After(byteTime):
			}
		}
	}()
}

// post delivers an event from an interrupt goroutine.
func (r *Radio) post(ev radio.Event) {
	select {
	case r.events <- ev:
	case <-r.quit:
	}
}

// postNow delivers an event from the goroutine that also reads the channel, so it must not
// block.
func (r *Radio) postNow(ev radio.Event) {
	select {
	case r.events <- ev:
	default:
		r.log("event queue full, dropping %s", ev)
	}
}

//===== registers

// setMode changes the radio's operating mode and waits for the new mode to be reached.
func (r *Radio) setMode(mode byte) {
	mode = mode & 0x1c

	// If we're in the right mode then don't do anything.
	if r.mode == mode {
		return
	}

	if r.power > 17 {
		// To get >17dBm on the rfm69H some magic is required, and it must be off in RX.
		if mode == MODE_TRANSMIT {
			r.writeReg(REG_TESTPA1, 0x5D)
			r.writeReg(REG_TESTPA2, 0x7C)
		} else {
			r.writeReg(REG_TESTPA1, 0x55)
			r.writeReg(REG_TESTPA2, 0x70)
		}
	}
	r.writeReg(REG_OPMODE, mode)

	// Busy-wait 'til the new mode is reached.
	for start := time.Now(); time.Since(start) < 100*time.Millisecond; {
		if val := r.readReg(REG_IRQFLAGS1); val&IRQ1_MODEREADY != 0 {
			r.mode = mode
			return
		}
	}
	r.setErr(errors.New("sx1231: timeout switching modes"))
}

func (r *Radio) setErr(err error) {
	r.Lock()
	defer r.Unlock()
	if r.err == nil {
		r.err = err
	}
}

// logRegs is a debug helper function to print almost all the sx1231's registers.
func (r *Radio) logRegs() {
	var buf, regs [0x60]byte
	buf[0] = 1
	r.Lock()
	r.spi.Tx(buf[:], regs[:])
	r.Unlock()
	regs[0] = 0 // no real data there
	r.log("     0  1  2  3  4  5  6  7  8  9  A  B  C  D  E  F")
	for i := 0; i < len(regs); i += 16 {
		line := fmt.Sprintf("%02x:", i)
		for j := 0; j < 16 && i+j < len(regs); j++ {
			line += fmt.Sprintf(" %02x", regs[i+j])
		}
		r.log(line)
	}
}

// tx runs one SPI transaction and records a failure as the persistent error.
func (r *Radio) tx(w, rd []byte) {
	r.Lock()
	defer r.Unlock()
	if err := r.spi.Tx(w, rd); err != nil && r.err == nil {
		r.err = fmt.Errorf("sx1231: %w", err)
	}
}

// writeReg writes one or multiple registers starting at addr, the sx1231 auto-increments (except
// for the FIFO register where that wouldn't be desirable).
func (r *Radio) writeReg(addr byte, data ...byte) {
	wBuf := make([]byte, len(data)+1)
	rBuf := make([]byte, len(data)+1)
	wBuf[0] = addr | 0x80
	copy(wBuf[1:], data)
	r.tx(wBuf, rBuf)
}

// readReg reads one register and returns its value.
func (r *Radio) readReg(addr byte) byte {
	var buf [2]byte
	r.tx([]byte{addr & 0x7f, 0}, buf[:])
	return buf[1]
}

// readFIFO reads len(p) bytes from the FIFO in one burst.
func (r *Radio) readFIFO(p []byte) {
	wBuf := make([]byte, len(p)+1)
	rBuf := make([]byte, len(p)+1)
	wBuf[0] = REG_FIFO
	r.tx(wBuf, rBuf)
	copy(p, rBuf[1:])
}

// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package radio

import (
	"time"

	"github.com/tve/dash7/codec"
)

// SyncClass selects the sync word.
type SyncClass byte

const (
	SyncForeground SyncClass = iota
	SyncBackground
)

// PacketMode selects how the hardware delimits packets.
type PacketMode byte

const (
	PacketFixed    PacketMode = iota // length given by SetPacket
	PacketVariable                   // first byte is the length
	PacketInfinite                   // software ends the packet
)

// IRQ is a set of interrupt sources.
type IRQ byte

const (
	IRQSync       IRQ = 1 << iota // sync word detected
	IRQIdle                       // radio went idle
	IRQFIFO                       // FIFO crossed its threshold
	IRQPacketDone                 // last byte of a fixed/variable packet received
	IRQTxDone                     // last byte sent
	IRQAll        IRQ = 0xFF
)

// Event is delivered to Radio.OnEvent by the interrupt path or the MAC timer.
type Event byte

const (
	EvSync Event = iota
	EvFIFO
	EvPacketDone
	EvTxDone
	EvRxTimeout
	EvCCATimer
	EvFloodTimer
)

var eventNames = [...]string{"sync", "fifo", "packet-done", "tx-done", "rx-timeout", "cca-timer",
	"flood-timer"}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "unknown"
}

// Transceiver is the register-level radio driven by the state machine. Implementations
// report interrupts as Events; they must not call into the Radio themselves.
//
// SetPacket called during reception with PacketFixed ends the packet after length more bytes,
// raising IRQPacketDone when they are in the FIFO. SetFIFOThreshold(n) raises IRQFIFO when n
// bytes can be read while receiving, and when no more than n bytes are queued while sending.
type Transceiver interface {
	ProgramModem(class byte, fec bool) // bit rate, deviation, bandwidth for a channel class
	ProgramFrequency(center byte)      // center frequency index
	ProgramPower(dBm int)              // TX output power
	Calibrate()                        // RC/PLL self calibration, radio must be in standby

	Sleep()
	Standby()
	StartRX()
	StartTX()

	RSSI() int // current RSSI in dBm, valid in RX mode
	Delay(d time.Duration)

	SetSync(c SyncClass)
	SetPacket(m PacketMode, length int)
	SetPreamble(n int)
	SetFIFOThreshold(n int)
	FIFOSize() int
	EnableIRQ(m IRQ)
	DisableIRQ(m IRQ)

	FIFO() codec.FIFO
}

// Timer posts an Event after a number of ticks. Scheduling replaces any pending event.
type Timer interface {
	Schedule(ticks int, ev Event)
	Cancel()
}

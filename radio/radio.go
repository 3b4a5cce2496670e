// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package radio carries one DASH7 transmit or receive operation from start to completion.
//
// A Radio is a state machine driven from two sides: the cooperative calls TxInit, TxCSMA,
// RxInit, Kill and StopFlood, and OnEvent, which is fed interrupts from the transceiver and
// expiries of the MAC timer. Both sides must be called from the same goroutine, typically the
// kernel's. Every operation ends in exactly one final callback invocation.
//
// Clear channel assessment samples the RSSI directly rather than relying on the chip's own
// CCA signal, and channel changes go through phymac so the radio is only reprogrammed for what
// actually changed.
package radio

import (
	"io"
	"log/slog"
	"time"

	"github.com/tve/dash7/codec"
	"github.com/tve/dash7/phymac"
	"github.com/tve/dash7/queue"
)

// Tuning constants.
const (
	MinRxTimeout   = 2                      // RX window in ticks when none is configured
	SleepGuard     = 3                      // CCA waits longer than this many ticks sleep the radio
	RSSISettle     = 250 * time.Microsecond // RX to valid RSSI
	CalSettle      = 2 * time.Millisecond   // same, with a calibration first
	TxPrefill      = 5                      // FIFO threshold while the first bytes go out
	TxPreload      = 8                      // bytes loaded before TX starts
	DefaultRxLimit = 16                     // default RX FIFO threshold
	queueSize      = 1024
)

// Radio is the link state machine bound to one transceiver.
type Radio struct {
	hw      Transceiver
	timer   Timer
	ch      *phymac.Channels
	ls      LinkState
	cb      Callback
	plain   codec.Coder
	fec     codec.Coder
	coder   codec.Coder // coder of the current operation
	txq     *queue.Queue
	rxq     *queue.Queue
	mfp     bool   // multi-frame packets supported
	paging  bool   // long frames serviced page by page
	hold    func() // called when a frame starts arriving
	bg      bool   // current operation is background
	comm    Comm
	rxSub   RxState // data sub-state of the current reception
	rssi    int     // RSSI at sync of the last reception, dBm
	ccaRSSI int     // last CCA sample, dBm
	log     *slog.Logger
}

// Option configures a Radio.
type Option func(*Radio)

// WithLogger sets the logger, the default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(r *Radio) {
		if l != nil {
			r.log = l.With("component", "radio")
		}
	}
}

// WithQueues sets the TX and RX queues, by default each gets a 1KB buffer.
func WithQueues(tx, rx *queue.Queue) Option {
	return func(r *Radio) { r.txq, r.rxq = tx, rx }
}

// WithFEC installs the coder used on FEC channels and makes FEC channels usable.
func WithFEC(c codec.Coder) Option { return func(r *Radio) { r.fec = c } }

// WithPlain replaces the coder used on plain channels.
func WithPlain(c codec.Coder) Option { return func(r *Radio) { r.plain = c } }

// WithMFP enables reception of multi-frame packets.
func WithMFP() Option { return func(r *Radio) { r.mfp = true } }

// WithPaging enables page-wise reception of long frames.
func WithPaging() Option { return func(r *Radio) { r.paging = true } }

// WithLinkHold sets a function called as soon as a frame starts arriving, used to keep the
// scheduler from preempting the reception.
func WithLinkHold(fn func()) Option { return func(r *Radio) { r.hold = fn } }

// New returns a Radio driving hw with channels taken from table.
func New(hw Transceiver, table phymac.TableSource, timer Timer, opts ...Option) *Radio {
	r := &Radio{
		hw:    hw,
		timer: timer,
		plain: codec.NewPlain(),
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(r)
	}
	if r.txq == nil {
		r.txq = queue.New(queueSize)
	}
	if r.rxq == nil {
		r.rxq = queue.New(queueSize)
	}
	r.ch = phymac.NewChannels(table, programmer{r},
		phymac.WithFEC(r.fec != nil), phymac.WithLogger(r.log))
	r.ls = LinkState{TxLimit: TxPrefill, RxLimit: DefaultRxLimit}
	return r
}

// programmer applies channel changes to the transceiver and tracks what must be redone later.
type programmer struct{ r *Radio }

func (p programmer) ProgramModem(class byte, fec bool) { p.r.hw.ProgramModem(class, fec) }
func (p programmer) ProgramFrequency(center byte)      { p.r.hw.ProgramFrequency(center) }
func (p programmer) PowerChanged()                     { p.r.ls.Flags |= FlagSetPwr }
func (p programmer) NeedCalibration()                  { p.r.ls.Flags |= FlagAutocal }

// Channels gives access to the channel lookup and the active PHYMAC.
func (r *Radio) Channels() *phymac.Channels { return r.ch }

// TxQueue returns the queue frames are sent from.
func (r *Radio) TxQueue() *queue.Queue { return r.txq }

// RxQueue returns the queue received frames are written to.
func (r *Radio) RxQueue() *queue.Queue { return r.rxq }

// State returns a snapshot of the link state.
func (r *Radio) State() LinkState { return r.ls }

// Busy reports whether an operation is in progress.
func (r *Radio) Busy() bool { return r.ls.Mode != Idle || r.cb != nil }

// LastRSSI returns the RSSI in dBm measured when the last frame was detected.
func (r *Radio) LastRSSI() int { return r.rssi }

// OnEvent advances the state machine on an interrupt or timer expiry.
func (r *Radio) OnEvent(ev Event) {
	switch ev {
	case EvCCATimer:
		if r.ls.Mode != Csma {
			return
		}
		if n := r.TxCSMA(); n >= 0 {
			r.timer.Schedule(n, EvCCATimer)
		}
	case EvRxTimeout:
		if r.ls.Mode == Listening {
			r.log.Debug("rx timeout", "channel", r.ch.PHY.Channel)
			r.finish(int(Timeout), 0)
		}
	case EvSync:
		if r.ls.Mode == Listening {
			r.rxSync()
		}
	case EvFIFO, EvPacketDone:
		switch r.ls.Mode {
		case DataRX:
			r.rxData(ev)
		case DataTX:
			if ev == EvFIFO {
				r.txData()
			}
		}
	case EvFloodTimer:
		if r.ls.Mode == DataTX && r.ls.Flags&FlagFlood != 0 {
			r.log.Debug("flood over", "channel", r.ch.PHY.Channel)
			r.StopFlood()
		}
	case EvTxDone:
		if r.ls.Mode == DataTX && r.ls.Tx == TxDone {
			r.finish(0, 0)
		}
	}
}

// Kill aborts the current operation, the callback gets Kill.
func (r *Radio) Kill() {
	if r.ls.Mode == Idle && r.cb == nil {
		return
	}
	r.log.Debug("kill", "mode", r.ls.Mode)
	r.finish(int(Kill), 0)
}

// StopFlood ends a background flood once the current frame is out.
func (r *Radio) StopFlood() { r.ls.Flags &^= FlagFlood }

// Assess switches to channel id, samples the RSSI and reports whether the channel is clear.
// It must not be called while an operation is in progress.
func (r *Radio) Assess(id byte) (rssi int, clear bool, err error) {
	if r.Busy() {
		return 0, false, Generic
	}
	if !r.ch.Lookup(id) {
		return 0, false, BadChannel
	}
	clear = r.ccascan()
	return r.ccaRSSI, clear, nil
}

// selectCoder picks the coder for the active channel.
func (r *Radio) selectCoder() bool {
	r.coder = r.plain
	if r.ch.PHY.Channel&phymac.FECBit != 0 && r.ch.PHY.Channel != phymac.NoChannel {
		r.coder = r.fec
	}
	return r.coder != nil
}

// queueOptions labels q for the current operation.
func (r *Radio) queueOptions(q *queue.Queue) {
	q.Options[0] = queue.Foreground
	if r.bg {
		q.Options[0] = queue.Background
	}
	q.Options[1] = queue.Plain
	if r.coder == r.fec && r.fec != nil {
		q.Options[1] = queue.FEC
	}
}

// finish ends the operation and delivers the callback. Calling it again delivers nothing.
func (r *Radio) finish(main, frame int) {
	r.hw.DisableIRQ(IRQAll)
	r.timer.Cancel()
	r.ls.Flags &= FlagSetPwr
	r.ls.Mode, r.ls.Rx, r.ls.Tx = Idle, RxInit, TxInit
	r.hw.Standby()
	cb := r.cb
	r.cb = nil
	if cb != nil {
		r.log.Debug("done", "status", main, "frame", frame)
		cb(main, frame)
	}
}

// notify reports intermediate progress without ending the operation.
func (r *Radio) notify(main, frame int) {
	if r.cb != nil {
		r.cb(main, frame)
	}
}

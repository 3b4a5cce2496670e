// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package radio

import (
	"github.com/tve/dash7/codec"
	"github.com/tve/dash7/session"
)

// RxInit starts listening on channel. The channel is only looked up again when it differs
// from the active one or the device is not associated; if it cannot be used the callback gets
// BadChannel right away and the hardware is left alone. A background reception ends with the
// first good frame, a foreground one with the packet. Either ends with Timeout when nothing
// arrives within the RX window.
func (r *Radio) RxInit(channel, netstate byte, comm Comm, bg bool, cb Callback) {
	if r.Busy() {
		r.Kill()
	}
	if channel != r.ch.PHY.Channel || netstate&session.DSMask == session.Unassoc {
		if !r.ch.Lookup(channel) {
			r.log.Debug("rx channel unusable", "channel", channel)
			if cb != nil {
				cb(int(BadChannel), 0)
			}
			return
		}
	}
	r.cb, r.comm, r.bg = cb, comm, bg
	r.ls.Flags &= FlagSetPwr | FlagAutocal
	if !r.selectCoder() {
		r.log.Warn("no coder for channel", "channel", r.ch.PHY.Channel)
		r.finish(int(Generic), 0)
		return
	}
	if r.ls.Flags&FlagAutocal != 0 {
		r.hw.Standby()
		r.hw.Calibrate()
		r.ls.Flags &^= FlagAutocal
	}

	r.ls.RxLimit = DefaultRxLimit
	if bg {
		r.ls.Flags |= FlagFlood
		r.rxSub = RxDataAuto
	} else {
		switch {
		case r.mfp:
			r.rxSub = RxDataMfp
		case r.paging:
			r.rxSub = RxDataPage
		default:
			r.rxSub = RxDataAuto
			r.ls.Flags |= FlagAuto
		}
	}
	r.listen()
	r.log.Debug("rx init", "channel", r.ch.PHY.Channel, "bg", bg, "sub", r.rxSub,
		"timeout", r.window())
}

// window is the RX window in ticks.
func (r *Radio) window() int {
	if r.comm.RxTimeout <= 0 {
		return MinRxTimeout
	}
	return r.comm.RxTimeout
}

// listen resets the RX queue and decoder and waits for a sync word.
func (r *Radio) listen() {
	r.rxq.Empty()
	r.queueOptions(r.rxq)
	r.coder.NewPacket(r.rxq, codec.RX)
	r.coder.NewFrame()

	if r.bg {
		r.hw.SetSync(SyncBackground)
		r.hw.SetPacket(PacketFixed, r.coder.RemainingBytes())
		r.hw.SetPreamble(preambleBG)
	} else {
		r.hw.SetSync(SyncForeground)
		r.hw.SetPacket(PacketVariable, 0)
		r.hw.SetPreamble(preambleFG)
	}
	r.hw.SetFIFOThreshold(r.ls.RxLimit)
	r.hw.DisableIRQ(IRQAll)
	r.hw.EnableIRQ(IRQSync)
	r.hw.StartRX()
	r.ls.Mode, r.ls.Rx, r.ls.Tx = Listening, RxListening, TxInit
	r.timer.Schedule(r.window(), EvRxTimeout)
}

// rxSync runs when the sync word has been detected. The RX window no longer applies, the
// frame is received to its end.
func (r *Radio) rxSync() {
	r.ls.Rx = RxSync
	r.timer.Cancel()
	r.hw.DisableIRQ(IRQSync | IRQIdle)
	r.rssi = r.hw.RSSI()
	if r.hold != nil {
		r.hold()
	}
	r.ls.Mode, r.ls.Rx = DataRX, r.rxSub
	r.hw.EnableIRQ(IRQFIFO)
}

// rxData drains the FIFO into the decoder and decides how the rest of the frame is received.
func (r *Radio) rxData(ev Event) {
	fifo := r.hw.FIFO()
	if r.ls.Rx == RxDone {
		r.coder.Decode(fifo)
		if r.coder.RemainingBytes() == 0 || ev == EvPacketDone {
			r.rxEnd()
		}
		return
	}

	for {
		r.coder.Decode(fifo)
		bytes, frames := r.coder.RemainingBytes(), r.coder.RemainingFrames()
		resize := r.ls.Flags&FlagResize != 0

		switch {
		case bytes == 0 && (frames == 0 || r.ls.Rx != RxDataMfp):
			r.ls.Rx = RxDone
			r.rxEnd()
			return

		case bytes == 0:
			// Frame boundary inside a multi-frame packet, the FIFO may already hold the
			// start of the next frame.
			r.notify(frames, r.coder.CRCCheck())
			r.rxq.Rebase(r.rxq.Putcursor)
			r.coder.NewFrame()
			if resize {
				r.ls.Flags &^= FlagResize
				r.hw.SetFIFOThreshold(r.ls.RxLimit)
			}
			continue

		case bytes <= r.ls.RxLimit && frames == 0:
			r.hw.SetPacket(PacketFixed, bytes)
			if r.ls.Rx == RxDataPage {
				r.hw.SetFIFOThreshold(bytes)
				resize = false
			} else {
				r.hw.DisableIRQ(IRQFIFO)
				r.hw.EnableIRQ(IRQPacketDone)
			}
			r.ls.Rx = RxDone

		case r.ls.Rx == RxDataMfp && bytes <= r.ls.RxLimit:
			r.hw.SetFIFOThreshold(bytes)
			r.ls.Flags |= FlagResize
			resize = false
		}

		if resize {
			r.ls.Flags &^= FlagResize
			r.hw.SetFIFOThreshold(r.ls.RxLimit)
		}
		return
	}
}

// rxEnd completes a reception. A damaged background frame does not end the scan, listening
// starts over with a fresh window.
func (r *Radio) rxEnd() {
	crc := r.coder.CRCCheck()
	if r.bg && crc != 0 {
		r.log.Debug("bad background frame, listening again")
		r.hw.Standby()
		r.listen()
		return
	}
	r.finish(0, crc)
}

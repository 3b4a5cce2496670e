// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package radio

import (
	"github.com/tve/dash7/codec"
	"github.com/tve/dash7/phymac"
)

// Preamble lengths in bytes.
const (
	preambleFG = 4
	preambleBG = 2
)

// TxInit prepares the transmission of the frames in the TX queue. Nothing happens on the air
// until TxCSMA is called. A background transmission floods its frame until StopFlood.
func (r *Radio) TxInit(netstate byte, comm Comm, bg bool, cb Callback) {
	if r.Busy() {
		r.Kill()
	}
	r.cb, r.comm, r.bg = cb, comm, bg
	r.ls.Flags &= FlagSetPwr | FlagAutocal
	if bg {
		r.ls.Flags |= FlagFlood
	}
	r.ls.Mode, r.ls.Tx, r.ls.Rx = Csma, TxInit, RxInit
	r.log.Debug("tx init", "netstate", netstate, "channels", comm.TxChannels, "csma", comm.CSMA, "bg", bg)
}

// txStart loads the first bytes and turns the transmitter on.
func (r *Radio) txStart() int {
	r.ls.Flags &^= FlagAsleep
	if r.ls.Flags&FlagAutocal != 0 {
		r.hw.Standby()
		r.hw.Calibrate()
		r.ls.Flags &^= FlagAutocal
	}
	if r.ls.Flags&FlagSetPwr != 0 {
		r.hw.ProgramPower(phymac.EIRPToDBm(r.ch.PHY.TxEIRP))
		r.ls.Flags &^= FlagSetPwr
	}

	r.queueOptions(r.txq)
	r.coder.NewPacket(r.txq, codec.TX)
	r.coder.NewFrame()
	if r.coder.RemainingFrames() > 0 {
		r.ls.Flags |= FlagFrCont
	}

	if r.bg {
		r.hw.SetSync(SyncBackground)
		r.hw.SetPreamble(preambleBG)
	} else {
		r.hw.SetSync(SyncForeground)
		r.hw.SetPreamble(preambleFG)
	}
	if r.ls.Flags&(FlagFlood|FlagFrCont) != 0 {
		r.hw.SetPacket(PacketInfinite, 0)
	} else {
		r.hw.SetPacket(PacketFixed, r.coder.RemainingBytes())
	}

	r.hw.SetFIFOThreshold(TxPrefill)
	r.coder.Encode(codec.Limit(r.hw.FIFO(), TxPreload))
	r.hw.StartTX()
	r.ls.TxLimit = r.hw.FIFOSize() - 1
	r.hw.SetFIFOThreshold(r.ls.TxLimit)
	r.ls.Mode, r.ls.Tx = DataTX, TxData
	r.hw.EnableIRQ(IRQFIFO)
	if r.ls.Flags&FlagFlood != 0 && r.comm.Flood > 0 {
		r.timer.Schedule(r.comm.Flood, EvFloodTimer)
	}
	r.log.Debug("tx start", "channel", r.ch.PHY.Channel, "frames", r.coder.RemainingFrames()+1)
	return CSMAStarted
}

// txData refills the FIFO and moves on to the next frame once the current one is out.
func (r *Radio) txData() {
	if r.ls.Tx != TxData {
		return
	}
	r.coder.Encode(r.hw.FIFO())
	if r.coder.RemainingBytes() > 0 {
		return
	}
	switch {
	case r.ls.Flags&FlagFlood != 0:
		r.txq.Rewind()
		r.coder.NewFrame()
		r.coder.Encode(r.hw.FIFO())
	case r.ls.Flags&FlagFrCont != 0 && r.coder.RemainingFrames() > 0:
		r.notify(1, 0)
		r.txq.Rebase(r.txq.Getcursor)
		r.coder.NewFrame()
		r.coder.Encode(r.hw.FIFO())
	default:
		r.ls.Tx = TxDone
		r.hw.DisableIRQ(IRQFIFO)
		r.hw.EnableIRQ(IRQTxDone)
	}
}

// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package radio

import "github.com/tve/dash7/phymac"

// TxCSMA advances the channel access of a transmission started with TxInit. A non-negative
// result is the number of ticks after which TxCSMA must be called again, CSMAStarted means
// the data is going out, and a negative Status means the operation ended and the callback
// has been invoked.
func (r *Radio) TxCSMA() int {
	if r.ls.Mode == DataTX {
		return CSMAStarted
	}
	if r.ls.Mode != Csma {
		return int(Generic)
	}
	switch r.ls.Tx {
	case TxInit:
		if !r.chanscan() {
			r.log.Debug("no usable tx channel", "channels", r.comm.TxChannels)
			r.finish(int(BadChannel), 0)
			return int(BadChannel)
		}
		if !r.selectCoder() {
			r.log.Warn("no coder for channel", "channel", r.ch.PHY.Channel)
			r.finish(int(Generic), 0)
			return int(Generic)
		}
		if !r.comm.CSMA {
			r.ls.Tx = TxStart
			return r.txStart()
		}
		r.ls.Tx = TxCca1
		fallthrough

	case TxCca1:
		if !r.ccascan() {
			return r.retry()
		}
		r.ls.Tx = TxCca2
		return r.pause(r.guard())

	case TxCca2:
		if !r.ccascan() {
			r.ls.Tx = TxCca1
			return r.retry()
		}
		r.ls.Tx = TxStart
		fallthrough

	case TxStart:
		return r.txStart()
	}
	return CSMAStarted
}

// guard is the wait between CCA attempts in ticks.
func (r *Radio) guard() int { return max(int(r.ch.PHY.TG), 1) }

// retry charges a busy channel against the contention period.
func (r *Radio) retry() int {
	n := r.guard()
	if r.comm.TCA > 0 {
		r.comm.TCA -= n
		if r.comm.TCA <= 0 {
			r.log.Debug("contention period exhausted", "channel", r.ch.PHY.Channel)
			r.finish(int(CCAFail), 0)
			return int(CCAFail)
		}
	}
	return r.pause(n)
}

// pause puts the radio to sleep if the wait is long enough to be worth it.
func (r *Radio) pause(n int) int {
	if n > SleepGuard {
		r.hw.Sleep()
		r.ls.Flags |= FlagAsleep
	}
	return n
}

// chanscan makes the first usable channel of the TX list active. It makes one pass.
func (r *Radio) chanscan() bool {
	for _, id := range r.comm.TxChannels {
		if r.ch.Lookup(id) {
			return true
		}
	}
	return false
}

// ccascan samples the RSSI on the active channel and reports whether it is below the CCA
// threshold. The radio ends up in standby.
func (r *Radio) ccascan() bool {
	r.ls.Flags &^= FlagAsleep
	settle := RSSISettle
	if r.ls.Flags&FlagAutocal != 0 {
		r.hw.Standby()
		r.hw.Calibrate()
		r.ls.Flags &^= FlagAutocal
		settle = CalSettle
	}
	r.hw.StartRX()
	r.hw.Delay(settle)
	r.ccaRSSI = r.hw.RSSI()
	r.hw.Standby()
	return r.ccaRSSI < phymac.RSSIToDBm(r.ch.PHY.CCAThr)
}

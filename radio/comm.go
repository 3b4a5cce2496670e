// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package radio

// Comm carries the communication parameters of one dialog.
type Comm struct {
	TxChannels []byte // candidate TX channels, tried in order
	CSMA       bool   // run clear channel assessment before sending
	TCA        int    // contention period in ticks, 0 for no limit
	RxTimeout  int    // RX window in ticks, 0 for MinRxTimeout
	Flood      int    // background flood duration in ticks, 0 floods until StopFlood
}

// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package radio

import "fmt"

// Mode is what the radio is busy with.
type Mode byte

const (
	Idle Mode = iota
	Listening
	Csma
	DataRX
	DataTX
)

var modeNames = [...]string{"idle", "listening", "csma", "data-rx", "data-tx"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", byte(m))
}

// RxState is the step of a reception.
type RxState byte

const (
	RxInit RxState = iota
	RxListening
	RxSync
	RxDataAuto // hardware handles the length
	RxDataPage // long frames serviced page by page
	RxDataMfp  // multi-frame packet
	RxDone
)

var rxNames = [...]string{"init", "listening", "sync", "data-auto", "data-page", "data-mfp", "done"}

func (s RxState) String() string {
	if int(s) < len(rxNames) {
		return rxNames[s]
	}
	return fmt.Sprintf("RxState(%d)", byte(s))
}

// TxState is the step of a transmission.
type TxState byte

const (
	TxInit TxState = iota
	TxCca1
	TxCca2
	TxStart
	TxData
	TxDone
)

var txNames = [...]string{"init", "cca1", "cca2", "start", "data", "done"}

func (s TxState) String() string {
	if int(s) < len(txNames) {
		return txNames[s]
	}
	return fmt.Sprintf("TxState(%d)", byte(s))
}

// Flags modify how the current operation runs.
type Flags byte

const (
	FlagFlood   Flags = 1 << iota // background flood
	FlagAuto                      // hardware packet length handling
	FlagResize                    // restore the FIFO threshold once
	FlagAutocal                   // calibrate before the next RX
	FlagSetPwr                    // TX power must be reprogrammed
	FlagAsleep                    // radio sleeps between CCA attempts
	FlagFrCont                    // packet continues with more frames
)

// LinkState is the state of the radio link.
type LinkState struct {
	Mode    Mode
	Rx      RxState
	Tx      TxState
	Flags   Flags
	TxLimit int // FIFO threshold while transmitting
	RxLimit int // FIFO threshold while receiving
}

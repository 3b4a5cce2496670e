// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package radio

import "fmt"

// Status is the outcome reported to a completion callback. Zero means success, positive
// values count frames still to come, negative values are errors.
type Status int

const (
	OK         Status = 0
	BadChannel Status = -1 // no usable channel
	CCAFail    Status = -2 // channel stayed busy for the whole contention period
	Timeout    Status = -3 // nothing received in the RX window
	Kill       Status = -4 // aborted
	Generic    Status = -5 // anything else
)

// CSMAStarted is returned by TxCSMA once the transmission is under way.
const CSMAStarted = -16

func (s Status) Error() string {
	switch s {
	case OK:
		return "ok"
	case BadChannel:
		return "radio: bad channel"
	case CCAFail:
		return "radio: channel busy"
	case Timeout:
		return "radio: timeout"
	case Kill:
		return "radio: killed"
	case Generic:
		return "radio: error"
	}
	if s > 0 {
		return fmt.Sprintf("radio: %d frames pending", int(s))
	}
	return fmt.Sprintf("radio: status %d", int(s))
}

// Callback receives completion reports. For RX the secondary value is the CRC result, 0 for
// good and -1 for bad. Intermediate reports of a multi-frame packet carry a positive primary.
type Callback func(main, frame int)

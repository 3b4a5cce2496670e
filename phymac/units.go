// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package phymac

// RSSIToDBm converts an encoded RSSI or threshold byte to dBm.
func RSSIToDBm(v byte) int { return int(v) - 140 }

// DBmToRSSI encodes dBm as an RSSI byte, clamping to the representable range.
func DBmToRSSI(dbm int) byte { return clamp(dbm + 140) }

// EIRPToHalfDBm converts an encoded EIRP byte to units of 0.5dBm.
func EIRPToHalfDBm(v byte) int { return int(v) - 80 }

// EIRPToDBm converts an encoded EIRP byte to whole dBm, rounding down.
func EIRPToDBm(v byte) int { return EIRPToHalfDBm(v) >> 1 }

// DBmToEIRP encodes dBm as an EIRP byte.
func DBmToEIRP(dbm float64) byte {
	h := dbm * 2
	if h < 0 {
		h -= 0.5
	} else {
		h += 0.5
	}
	return clamp(int(h) + 80)
}

func clamp(v int) byte {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return byte(v)
}

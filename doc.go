// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package dash7 is a DASH7 Mode 2 link layer for Linux hosts driving an SX1231 radio over SPI.
//
// The link layer proper lives in the sub-packages: session schedules dialogs, radio runs the
// CSMA/TX/RX state machine, phymac maps channel IDs to radio settings, and kernel ties them
// together. This package only holds the SPI and GPIO shims used to reach the hardware, with
// backends for embd and periph.
package dash7

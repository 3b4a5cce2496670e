// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package phymac maps DASH7 channel IDs to the physical parameters used by the radio and
// reprograms the radio when the channel changes.
//
// A channel ID is one byte: bit 7 selects FEC coding, bits 6..4 the channel class (data rate
// and bandwidth) and bits 3..0 the center frequency index. The 7 bits below the FEC flag form
// the spectrum ID, which is what the channel configuration file is keyed by.
package phymac

import (
	"io"
	"log/slog"
)

// Channel ID fields.
const (
	FECBit       = 0x80 // channel uses FEC coding
	SpectrumMask = 0x7F // spectrum ID part of a channel ID
	ClassMask    = 0xF0 // coarse class nibble, includes the FEC flag
	CenterMask   = 0x0F // center frequency index
	Wildcard     = 0x7F // spectrum ID meaning "any", keeps the current channel
	NoChannel    = 0xFF // channel ID of a radio that has not been programmed
)

// Autoscale bits of a channel record.
const (
	AutoscaleOn   = 0x80 // CCA threshold is auto-scaled by the radio
	AutoscaleMask = 0x7F // mask applied to the CCA threshold when auto-scaling
)

// guardTimes is the slot guard time in ticks per channel class.
var guardTimes = [8]uint16{
	5,  // 0: base
	10, // 1: legacy
	5,  // 2: normal
	2,  // 3: hi-rate
	5, 5, 5, 5,
}

// GuardTime returns the slot guard time in ticks for a channel ID.
func GuardTime(id byte) uint16 { return guardTimes[(id>>4)&0x07] }

// PHYMAC holds the physical layer parameters of the active channel.
type PHYMAC struct {
	Channel   byte   // active channel ID
	Autoscale byte   // autoscale bits from the channel record
	TxEIRP    byte   // TX power, 0=-40dBm in 0.5dB steps
	LinkQual  byte   // minimum link quality
	CSThr     byte   // carrier sense threshold, 0=-140dBm in 1dB steps
	CCAThr    byte   // clear channel threshold, 0=-140dBm in 1dB steps
	TG        uint16 // slot guard time in ticks
}

// Programmer is what the channel lookup needs from the radio to apply a new channel.
type Programmer interface {
	ProgramModem(class byte, fec bool) // bulk modem registers: bit rate, bandwidth, FEC
	ProgramFrequency(center byte)      // center frequency
	PowerChanged()                     // TX power must be reprogrammed before the next TX
	NeedCalibration()                  // calibration must run before the next RX/CCA
}

// Channels performs channel lookups against a channel configuration table and keeps the
// resulting PHYMAC. It is owned by a single radio and is not safe for concurrent use.
type Channels struct {
	PHY        PHYMAC
	table      TableSource
	prog       Programmer
	fec        bool // FEC coding available
	programmed bool // radio has been programmed at least once
	log        *slog.Logger
}

// Option configures Channels.
type Option func(*Channels)

// WithFEC declares whether the radio can do FEC coding.
func WithFEC(fec bool) Option { return func(c *Channels) { c.fec = fec } }

// WithLogger sets the logger, the default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channels) {
		if l != nil {
			c.log = l.With("component", "phymac")
		}
	}
}

// NewChannels returns a Channels for a table and the radio to program.
func NewChannels(table TableSource, prog Programmer, opts ...Option) *Channels {
	c := &Channels{
		PHY:   PHYMAC{Channel: NoChannel},
		table: table,
		prog:  prog,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FEC reports whether FEC channels are supported.
func (c *Channels) FEC() bool { return c.fec }

// Lookup makes id the active channel. It returns true if the channel is usable, in which
// case PHY describes it and the radio has been reprogrammed as needed. On failure nothing
// changes.
func (c *Channels) Lookup(id byte) bool {
	if c.programmed && id == c.PHY.Channel {
		return true
	}
	if id&FECBit != 0 && !c.fec {
		c.log.Debug("FEC channel not supported", "channel", id)
		return false
	}
	spectrum := id & SpectrumMask
	if spectrum == Wildcard {
		return true
	}

	var rec Record
	found := false
	err := c.table.Scan(func(r Record) bool {
		if r.SpectrumID == spectrum {
			rec, found = r, true
			return false
		}
		return true
	})
	if err != nil {
		c.log.Warn("cannot read channel table", "error", err)
		return false
	}
	if !found {
		c.log.Debug("channel not in table", "channel", id)
		return false
	}

	cca := rec.CCAThr
	if rec.Autoscale&AutoscaleOn != 0 {
		cca &= AutoscaleMask
	}
	c.apply(PHYMAC{
		Channel:   id,
		Autoscale: rec.Autoscale,
		TxEIRP:    rec.TxEIRP,
		LinkQual:  rec.LinkQual,
		CSThr:     rec.CSThr,
		CCAThr:    cca,
		TG:        GuardTime(id),
	})
	return true
}

// apply installs the new parameters and reprograms only what changed.
func (c *Channels) apply(phy PHYMAC) {
	old := c.PHY
	fresh := !c.programmed
	c.PHY = phy
	c.programmed = true

	if fresh || old.TxEIRP != phy.TxEIRP {
		c.prog.PowerChanged()
	}
	if fresh || (old.Channel^phy.Channel)&ClassMask != 0 {
		c.prog.ProgramModem((phy.Channel>>4)&0x07, phy.Channel&FECBit != 0)
	}
	if fresh || (old.Channel^phy.Channel)&CenterMask != 0 {
		c.prog.ProgramFrequency(phy.Channel & CenterMask)
		c.prog.NeedCalibration()
	}
	c.log.Debug("channel", "id", phy.Channel, "eirp", EIRPToDBm(phy.TxEIRP),
		"cca", RSSIToDBm(phy.CCAThr), "tg", phy.TG)
}

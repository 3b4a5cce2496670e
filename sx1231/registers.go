// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1231

const (
	REG_FIFO        = 0x00
	REG_OPMODE      = 0x01
	REG_DATAMODUL   = 0x02
	REG_BITRATEMSB  = 0x03
	REG_FDEVMSB     = 0x05
	REG_FRFMSB      = 0x07
	REG_OSC1        = 0x0A
	REG_AFCCTRL     = 0x0B
	REG_VERSION     = 0x10
	REG_PALEVEL     = 0x11
	REG_RXBW        = 0x19
	REG_AFCBW       = 0x1A
	REG_AFCFEI      = 0x1E
	REG_AFCMSB      = 0x1F
	REG_RSSICONFIG  = 0x23
	REG_RSSIVALUE   = 0x24
	REG_DIOMAPPING1 = 0x25
	REG_DIOMAPPING2 = 0x26
	REG_IRQFLAGS1   = 0x27
	REG_IRQFLAGS2   = 0x28
	REG_RSSITHRES   = 0x29
	REG_PREAMBLEMSB = 0x2C
	REG_SYNCCONFIG  = 0x2E
	REG_SYNCVALUE1  = 0x2F
	REG_PKTCONFIG1  = 0x37
	REG_PAYLOADLEN  = 0x38
	REG_FIFOTHRESH  = 0x3C
	REG_PKTCONFIG2  = 0x3D
	REG_TESTPA1     = 0x5A
	REG_TESTPA2     = 0x5C
	REG_TESTAFC     = 0x71

	MODE_SLEEP    = 0 << 2
	MODE_STANDBY  = 1 << 2
	MODE_FS       = 2 << 2
	MODE_TRANSMIT = 3 << 2
	MODE_RECEIVE  = 4 << 2

	RCCALSTART = 0x80
	RCCALDONE  = 0x40

	RSSISTART = 0x01
	RSSIDONE  = 0x02

	IRQ1_MODEREADY = 1 << 7
	IRQ1_RXREADY   = 1 << 6
	IRQ1_PLLLOCK   = 1 << 4
	IRQ1_RSSI      = 1 << 3
	IRQ1_TIMEOUT   = 1 << 2
	IRQ1_SYNCMATCH = 1 << 0

	IRQ2_FIFOFULL     = 1 << 7
	IRQ2_FIFONOTEMPTY = 1 << 6
	IRQ2_FIFOLEVEL    = 1 << 5
	IRQ2_FIFOOVERRUN  = 1 << 4
	IRQ2_PACKETSENT   = 1 << 3
	IRQ2_PAYLOADREADY = 1 << 2

	// DIO0 is bits 7-6 of REG_DIOMAPPING1, DIO1 bits 5-4. DIO1 is left at 00, FifoLevel, in
	// both RX and TX.
	DIO0_RX_SYNC     = 0x80
	DIO0_RX_PAYREADY = 0x40
	DIO0_TX_PKTSENT  = 0x00
	DIO0_FS_PLLLOCK  = 0xC0
	DIO1_FIFOLEVEL   = 0x00

	FIFOTHRESH_NOTEMPTY = 0x80 // TX starts as soon as the FIFO holds a byte

	PKTCONFIG1_VARIABLE = 0x80
)

// register values to initialize the chip, this array has pairs of <address, data>
var configRegs = []byte{
	0x01, 0x00, // OpMode = sleep
	0x02, 0x00, // DataModul = packet mode, fsk
	0x11, 0x9F, // power output
	0x12, 0x09, // Pa ramp in 40us
	0x1E, 0x0C, // AfcAutoclearOn, AfcAutoOn
	0x25, 0x00, // DioMapping1
	0x26, 0x07, // disable clkout
	0x29, 0xDC, // RssiThresh -110dBm, sync detection starts above it
	0x2A, 0x00, // disable RxStart timeout
	0x2B, 0x00, // disable RssiTimeout, the MAC times out receptions
	0x2C, 0x00, // PreambleSize msb
	0x2D, 0x04, // PreambleSize lsb
	0x37, 0x00, // PacketConfig1 = fixed, no whitening, no crc, no addr filter
	0x38, 0x00, // PayloadLength = 0, unlimited
	0x3C, 0x8F, // FifoTresh, not empty, level 15
	0x3D, 0x00, // PacketConfig2, no autorxrestart
	0x6F, 0x30, // RegTestDagc 20->improve AFC w/low-beta, 30->w/out low-beta offset
}

// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package sx1231

// fifo is the chip's FIFO as seen by a codec. The chip only reports whether the FIFO is empty,
// full, or above the threshold, so avail and room hold what is known to be safe and are
// refreshed from the flags once used up.
type fifo struct {
	r     *Radio
	avail int // bytes that can be read
	room  int // bytes that can be written
}

func (f *fifo) reset() { f.avail, f.room = 0, 0 }

func (f *fifo) Len() int {
	if f.avail == 0 {
		flags := f.r.readReg(REG_IRQFLAGS2)
		switch {
		case flags&IRQ2_FIFOLEVEL != 0:
			f.avail = int(f.r.level) + 1
		case flags&IRQ2_FIFONOTEMPTY != 0:
			f.avail = 1
		}
	}
	return f.avail
}

func (f *fifo) Read(p []byte) int {
	n := min(len(p), f.Len())
	if n == 0 {
		return 0
	}
	f.r.readFIFO(p[:n])
	f.avail -= n
	return n
}

func (f *fifo) Room() int {
	if f.room == 0 {
		flags := f.r.readReg(REG_IRQFLAGS2)
		switch {
		case flags&IRQ2_FIFONOTEMPTY == 0:
			f.room = fifoSize
		case flags&IRQ2_FIFOLEVEL == 0:
			f.room = fifoSize - int(f.r.level)
		case flags&IRQ2_FIFOFULL == 0:
			f.room = 1
		}
	}
	return f.room
}

func (f *fifo) Write(p []byte) int {
	n := min(len(p), f.Room())
	if n == 0 {
		return 0
	}
	f.r.writeReg(REG_FIFO, p[:n]...)
	f.room -= n
	return n
}

// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package codec

import (
	"github.com/sigurn/crc16"

	"github.com/tve/dash7/queue"
)

// Plain is the uncoded frame format: bytes go to the air as they are, followed by a CRC16.
type Plain struct {
	q      *queue.Queue
	dir    Direction
	bg     bool
	total  int    // frames in the TX packet
	done   int    // frames started
	frames int    // frames after the current one
	length int    // on-air length of the current frame, 0 while unknown
	pos    int    // on-air bytes handled in the current frame
	start  int    // queue offset of the current frame
	crc    uint16 // running CRC
	rxcrc  uint16 // CRC received
	bad    bool   // frame rejected: bad length or queue overrun
	one    [1]byte
	buf    [32]byte
}

// NewPlain returns a plain coder.
func NewPlain() *Plain { return &Plain{} }

func (c *Plain) NewPacket(q *queue.Queue, dir Direction) {
	*c = Plain{q: q, dir: dir, bg: q.Options[0] == queue.Background}
	if dir == TX {
		c.total = CountFrames(q)
	}
}

func (c *Plain) NewFrame() {
	c.pos, c.rxcrc, c.bad, c.frames = 0, 0, false, 0
	c.crc = crc16.Init(crcTable)
	if c.dir == RX {
		c.start = c.q.Putcursor
		c.length = 0
		if c.bg {
			c.length = BackgroundFrame
		}
		return
	}

	c.start = c.q.Getcursor
	c.done++
	if c.total > c.done {
		c.frames = c.total - c.done
	}
	switch {
	case c.bg:
		c.length = BackgroundFrame
	case c.start < c.q.Putcursor && int(c.q.Front[c.start]) >= Overhead:
		c.length = int(c.q.Front[c.start])
	default:
		c.length = 0
	}
}

func (c *Plain) RemainingBytes() int {
	// The continuation byte must be in before the frame can be judged.
	if c.dir == RX && !c.bad && !c.bg && c.pos < 2 {
		return MaxFrame
	}
	return c.length - c.pos
}

func (c *Plain) RemainingFrames() int { return c.frames }

func (c *Plain) CRCCheck() int {
	if c.dir == TX {
		return 0
	}
	if c.bad || c.length == 0 || c.pos != c.length || crc16.Complete(c.crc, crcTable) != c.rxcrc {
		return -1
	}
	return 0
}

func (c *Plain) Encode(f FIFO) {
	for {
		n := min(c.length-c.pos, f.Room(), len(c.buf))
		if n <= 0 {
			return
		}
		for i := 0; i < n; i++ {
			c.buf[i] = c.txByte()
		}
		f.Write(c.buf[:n])
	}
}

// txByte produces the next on-air byte of the current frame.
func (c *Plain) txByte() byte {
	crcAt := c.length - 2
	if c.pos >= crcAt {
		sum := crc16.Complete(c.crc, crcTable)
		b := byte(sum)
		if c.pos == crcAt {
			b = byte(sum >> 8)
		}
		c.pos++
		if c.pos == c.length {
			c.q.Getcursor = c.start + crcAt
		}
		return b
	}

	var b byte
	if !c.bg && c.pos == 1 {
		b = byte(c.frames)
	} else if i := c.start + c.pos; i < c.q.Putcursor {
		b = c.q.Front[i]
	}
	c.one[0] = b
	c.crc = crc16.Update(c.crc, c.one[:], crcTable)
	c.pos++
	return b
}

func (c *Plain) Decode(f FIFO) {
	for {
		want := c.length - c.pos
		if c.length == 0 {
			want = 1 // length byte first
		}
		n := min(want, f.Len(), len(c.buf))
		if n <= 0 {
			return
		}
		n = f.Read(c.buf[:n])
		for _, b := range c.buf[:n] {
			c.rxByte(b)
		}
	}
}

// rxByte consumes the next on-air byte of the current frame.
func (c *Plain) rxByte(b byte) {
	if c.length == 0 {
		if int(b) < Overhead {
			c.bad, c.length, c.pos = true, 1, 1
			return
		}
		c.length = int(b)
	}
	if c.pos >= c.length-2 {
		c.rxcrc = c.rxcrc<<8 | uint16(b)
		c.pos++
		return
	}
	if !c.bg && c.pos == 1 {
		c.frames = int(b)
	}
	c.one[0] = b
	c.crc = crc16.Update(c.crc, c.one[:], crcTable)
	if c.q.WriteByte(b) != nil {
		c.bad = true
	}
	c.pos++
}

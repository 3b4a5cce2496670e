// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package codec streams frames between a queue and a radio FIFO.
//
// A foreground frame on the air is [length][continuation][payload...][crc16], where length
// counts every byte of the frame including itself and the CRC, and continuation is the number
// of frames that follow in the same packet. Queues hold frames in the same layout minus the
// CRC. A background frame is a fixed 7 bytes: 5 data bytes and the CRC.
//
// Coders are used by one radio at a time and are not safe for concurrent use.
package codec

import (
	"errors"

	"github.com/sigurn/crc16"

	"github.com/tve/dash7/queue"
)

// Frame sizes.
const (
	MaxFrame        = 255 // largest on-air foreground frame
	BackgroundFrame = 7   // on-air background frame
	BackgroundData  = 5   // data bytes in a background frame
	Overhead        = 4   // length, continuation and CRC bytes of a foreground frame
)

// ErrTooLong is returned when a payload does not fit into a frame.
var ErrTooLong = errors.New("codec: payload too long")

// Direction selects whether a packet is being sent or received.
type Direction int

const (
	TX Direction = iota
	RX
)

// FIFO is the radio's data FIFO as seen by a coder.
type FIFO interface {
	Write(p []byte) int // writes as much of p as there is room for
	Read(p []byte) int  // reads as much as is available
	Room() int          // bytes that can be written
	Len() int           // bytes that can be read
}

// Coder converts between queued frames and the bytes on the air.
type Coder interface {
	// NewPacket binds the coder to a queue. For TX the frames in the queue are counted.
	NewPacket(q *queue.Queue, dir Direction)
	// NewFrame starts the next frame: at the get cursor for TX, at the put cursor for RX.
	NewFrame()
	// Encode moves as many bytes of the current frame into f as fit.
	Encode(f FIFO)
	// Decode moves bytes of the current frame out of f into the queue.
	Decode(f FIFO)
	// RemainingBytes is the number of on-air bytes left in the current frame. While the
	// length of a received frame is unknown it is MaxFrame.
	RemainingBytes() int
	// RemainingFrames is the number of frames after the current one.
	RemainingFrames() int
	// CRCCheck returns 0 if the received frame is intact, -1 otherwise.
	CRCCheck() int
}

var crcTable = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// CRC computes the frame CRC over data.
func CRC(data []byte) uint16 { return crc16.Checksum(data, crcTable) }

// AppendFrame appends a foreground frame carrying payload to q.
func AppendFrame(q *queue.Queue, payload []byte) error {
	if len(payload)+Overhead > MaxFrame {
		return ErrTooLong
	}
	if q.Room() < len(payload)+2 {
		return queue.ErrFull
	}
	q.WriteByte(byte(len(payload) + Overhead))
	q.WriteByte(0)
	q.Write(payload)
	return nil
}

// AppendBackground appends a background frame to q.
func AppendBackground(q *queue.Queue, data [BackgroundData]byte) error {
	if _, err := q.Write(data[:]); err != nil {
		return err
	}
	return nil
}

// Payload strips the length and continuation bytes from a queued foreground frame.
func Payload(frame []byte) []byte {
	if len(frame) < 2 {
		return nil
	}
	l := int(frame[0]) - 2
	if l > len(frame) {
		l = len(frame)
	}
	if l < 2 {
		return nil
	}
	return frame[2:l]
}

// CountFrames counts the frames queued between the get and put cursors.
func CountFrames(q *queue.Queue) int {
	if q.Options[0] == queue.Background {
		if q.Len() >= BackgroundData {
			return 1
		}
		return 0
	}
	n := 0
	for off := q.Getcursor; off < q.Putcursor; n++ {
		l := int(q.Front[off])
		if l < Overhead || off+l-2 > q.Putcursor {
			break
		}
		off += l - 2
	}
	return n
}

// Buffer is a FIFO over a byte slice, used to run coders without a radio. A zero Cap means
// unlimited room.
type Buffer struct {
	data []byte
	Cap  int
}

// NewBuffer returns a Buffer holding a copy of data.
func NewBuffer(data []byte) *Buffer { return &Buffer{data: append([]byte(nil), data...)} }

func (b *Buffer) Write(p []byte) int {
	n := min(len(p), b.Room())
	b.data = append(b.data, p[:n]...)
	return n
}

func (b *Buffer) Read(p []byte) int {
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n
}

func (b *Buffer) Room() int {
	if b.Cap == 0 {
		return MaxFrame * 4
	}
	return b.Cap - len(b.data)
}

func (b *Buffer) Len() int      { return len(b.data) }
func (b *Buffer) Bytes() []byte { return b.data }

// Limit returns a FIFO that accepts at most n bytes before reporting itself full.
func Limit(f FIFO, n int) FIFO { return &limited{f, n} }

type limited struct {
	FIFO
	n int
}

func (l *limited) Write(p []byte) int {
	if len(p) > l.n {
		p = p[:l.n]
	}
	n := l.FIFO.Write(p)
	l.n -= n
	return n
}

func (l *limited) Room() int { return min(l.n, l.FIFO.Room()) }

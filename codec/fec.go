// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package codec

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
	"github.com/sigurn/crc8"

	"github.com/tve/dash7/queue"
)

// FEC shard layout. The plain frame (CRC16 included) is cut into 4-byte data shards, each
// followed by its CRC8, and two 4-byte Reed-Solomon parity shards are appended. A foreground
// frame is preceded by its plain length so the receiver knows how much to collect.
// Up to two damaged data shards are repaired.
const (
	shardSize    = 4
	parityShards = 2
)

var crc8Table = crc8.MakeTable(crc8.CRC8_MAXIM)

// EncodedLen returns the on-air length of a plain frame of length l.
func EncodedLen(l int, bg bool) int {
	k := (l + shardSize - 1) / shardSize
	n := k*(shardSize+1) + parityShards*shardSize
	if !bg {
		n++
	}
	return n
}

// FEC wraps the plain format with block coding.
type FEC struct {
	plain   Plain
	dir     Direction
	bg      bool
	frames  int
	out     []byte // TX: encoded frame
	in      []byte // RX: encoded bytes collected so far
	pos     int    // TX: bytes of out sent
	length  int    // RX: encoded length, 0 while unknown
	decoded bool
	bad     bool
	codecs  map[int]reedsolomon.Encoder
	buf     [32]byte
}

// NewFEC returns a FEC coder.
func NewFEC() *FEC { return &FEC{codecs: make(map[int]reedsolomon.Encoder)} }

func (c *FEC) encoder(k int) (reedsolomon.Encoder, error) {
	if enc, ok := c.codecs[k]; ok {
		return enc, nil
	}
	if c.codecs == nil {
		c.codecs = make(map[int]reedsolomon.Encoder)
	}
	enc, err := reedsolomon.New(k, parityShards)
	if err != nil {
		return nil, fmt.Errorf("codec: reed-solomon(%d,%d): %w", k, parityShards, err)
	}
	c.codecs[k] = enc
	return enc, nil
}

func (c *FEC) NewPacket(q *queue.Queue, dir Direction) {
	c.plain.NewPacket(q, dir)
	c.dir, c.bg = dir, q.Options[0] == queue.Background
	c.frames = 0
}

func (c *FEC) NewFrame() {
	c.plain.NewFrame()
	c.out, c.in, c.pos = c.out[:0], c.in[:0], 0
	c.decoded, c.bad = false, false
	if c.dir == RX {
		c.length = 0
		if c.bg {
			c.length = EncodedLen(BackgroundFrame, true)
		}
		return
	}

	c.frames = c.plain.RemainingFrames()
	var frame Buffer
	c.plain.Encode(&frame)
	if frame.Len() == 0 {
		return
	}
	out, err := c.encode(frame.Bytes())
	if err != nil {
		c.bad = true
		return
	}
	c.out = out
}

// encode turns a plain frame into its coded form.
func (c *FEC) encode(frame []byte) ([]byte, error) {
	k := (len(frame) + shardSize - 1) / shardSize
	enc, err := c.encoder(k)
	if err != nil {
		return nil, err
	}
	shards := make([][]byte, k+parityShards)
	for i := range shards {
		shards[i] = make([]byte, shardSize)
	}
	for i := 0; i < k; i++ {
		copy(shards[i], frame[i*shardSize:])
	}
	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("codec: encoding: %w", err)
	}

	out := make([]byte, 0, EncodedLen(len(frame), c.bg))
	if !c.bg {
		out = append(out, byte(len(frame)))
	}
	for i := 0; i < k; i++ {
		out = append(out, shards[i]...)
		out = append(out, crc8.Checksum(shards[i], crc8Table))
	}
	for i := k; i < k+parityShards; i++ {
		out = append(out, shards[i]...)
	}
	return out, nil
}

// decode repairs and reassembles a plain frame of length l from its coded form.
func (c *FEC) decode(l int, coded []byte) ([]byte, error) {
	k := (l + shardSize - 1) / shardSize
	enc, err := c.encoder(k)
	if err != nil {
		return nil, err
	}
	shards := make([][]byte, k+parityShards)
	off := 0
	for i := 0; i < k; i++ {
		s := coded[off : off+shardSize]
		if crc8.Checksum(s, crc8Table) == coded[off+shardSize] {
			shards[i] = append([]byte(nil), s...)
		}
		off += shardSize + 1
	}
	for i := k; i < k+parityShards; i++ {
		shards[i] = append([]byte(nil), coded[off:off+shardSize]...)
		off += shardSize
	}
	if err := enc.ReconstructData(shards); err != nil {
		return nil, fmt.Errorf("codec: reconstruct: %w", err)
	}
	frame := make([]byte, 0, k*shardSize)
	for i := 0; i < k; i++ {
		frame = append(frame, shards[i]...)
	}
	return frame[:l], nil
}

func (c *FEC) RemainingBytes() int {
	if c.dir == TX {
		return len(c.out) - c.pos
	}
	if c.length == 0 {
		return MaxFrame
	}
	return c.length - len(c.in)
}

func (c *FEC) RemainingFrames() int {
	if c.dir == TX {
		return c.frames
	}
	if !c.decoded {
		return 0
	}
	return c.plain.RemainingFrames()
}

func (c *FEC) CRCCheck() int {
	if c.dir == TX {
		return 0
	}
	if c.bad || !c.decoded {
		return -1
	}
	return c.plain.CRCCheck()
}

func (c *FEC) Encode(f FIFO) {
	for c.pos < len(c.out) {
		n := f.Write(c.out[c.pos:])
		if n <= 0 {
			return
		}
		c.pos += n
	}
}

func (c *FEC) Decode(f FIFO) {
	for !c.decoded {
		want := c.length - len(c.in)
		if c.length == 0 {
			want = 1
		}
		n := min(want, f.Len(), len(c.buf))
		if n <= 0 {
			return
		}
		n = f.Read(c.buf[:n])
		c.in = append(c.in, c.buf[:n]...)

		if c.length == 0 {
			l := int(c.in[0])
			if l < Overhead {
				c.bad, c.decoded, c.length = true, true, 1
				return
			}
			c.length = EncodedLen(l, false)
		}
		if len(c.in) == c.length {
			c.finish()
		}
	}
}

// finish decodes a fully collected frame into the queue.
func (c *FEC) finish() {
	c.decoded = true
	l, coded := BackgroundFrame, c.in
	if !c.bg {
		l, coded = int(c.in[0]), c.in[1:]
	}
	frame, err := c.decode(l, coded)
	if err != nil {
		c.bad = true
		return
	}
	c.plain.Decode(NewBuffer(frame))
}

// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tve/dash7/queue"
)

// transfer pushes one packet through tx and rx coders using a FIFO of the given size, the way
// the radio services threshold interrupts. It returns the air bytes and the CRC results.
func transfer(t *testing.T, tx, rx Coder, txq, rxq *queue.Queue, fifo int) ([]byte, []int) {
	t.Helper()
	var air []byte
	tx.NewPacket(txq, TX)
	for {
		tx.NewFrame()
		for tx.RemainingBytes() > 0 {
			f := &Buffer{Cap: fifo}
			tx.Encode(f)
			require.NotZero(t, f.Len(), "encoder made no progress")
			air = append(air, f.Bytes()...)
		}
		if tx.RemainingFrames() == 0 {
			break
		}
	}

	var crcs []int
	rx.NewPacket(rxq, RX)
	rx.NewFrame()
	in := NewBuffer(air)
	for in.Len() > 0 {
		// Hand the decoder at most fifo bytes at a time.
		chunk := make([]byte, min(fifo, in.Len()))
		in.Read(chunk)
		f := NewBuffer(chunk)
		for f.Len() > 0 {
			rx.Decode(f)
			if rx.RemainingBytes() == 0 {
				crcs = append(crcs, rx.CRCCheck())
				if rx.RemainingFrames() == 0 {
					return air, crcs
				}
				rxq.Rebase(rxq.Putcursor)
				rx.NewFrame()
			}
		}
	}
	return air, crcs
}

func TestPlainSingleFrame(t *testing.T) {
	txq, rxq := queue.New(64), queue.New(64)
	require.NoError(t, AppendFrame(txq, []byte("hello")))
	assert.Equal(t, 1, CountFrames(txq))

	air, crcs := transfer(t, NewPlain(), NewPlain(), txq, rxq, 3)
	require.Len(t, air, 9)
	assert.Equal(t, byte(9), air[0])
	assert.Equal(t, byte(0), air[1])
	assert.Equal(t, CRC(air[:7]), uint16(air[7])<<8|uint16(air[8]))
	assert.Equal(t, []int{0}, crcs)
	assert.Equal(t, []byte("hello"), Payload(rxq.Bytes()))
	assert.Equal(t, txq.Putcursor, txq.Getcursor, "all queued bytes consumed")
}

func TestPlainMultiFrame(t *testing.T) {
	txq, rxq := queue.New(64), queue.New(64)
	for _, p := range []string{"one", "two!", "three"} {
		require.NoError(t, AppendFrame(txq, []byte(p)))
	}
	assert.Equal(t, 3, CountFrames(txq))

	air, crcs := transfer(t, NewPlain(), NewPlain(), txq, rxq, 8)
	assert.Equal(t, []int{0, 0, 0}, crcs)
	// Continuation bytes count down.
	assert.Equal(t, byte(2), air[1])
	assert.Equal(t, byte(1), air[int(air[0])+1])
	// The RX queue was rebased to the last frame.
	assert.Equal(t, []byte("three"), Payload(rxq.Frame()))
}

func TestPlainBackground(t *testing.T) {
	txq, rxq := queue.New(16), queue.New(16)
	txq.Options[0], rxq.Options[0] = queue.Background, queue.Background
	require.NoError(t, AppendBackground(txq, [BackgroundData]byte{1, 2, 3, 4, 5}))

	air, crcs := transfer(t, NewPlain(), NewPlain(), txq, rxq, 4)
	assert.Len(t, air, BackgroundFrame)
	assert.Equal(t, []int{0}, crcs)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, rxq.Bytes())
}

func TestPlainBadCRC(t *testing.T) {
	txq := queue.New(32)
	require.NoError(t, AppendFrame(txq, []byte("data")))
	tx := NewPlain()
	tx.NewPacket(txq, TX)
	tx.NewFrame()
	f := &Buffer{}
	tx.Encode(f)
	air := f.Bytes()
	air[3] ^= 0x10

	rx := NewPlain()
	rx.NewPacket(queue.New(32), RX)
	rx.NewFrame()
	assert.Equal(t, MaxFrame, rx.RemainingBytes(), "length unknown before the header")
	rx.Decode(NewBuffer(air))
	assert.Equal(t, 0, rx.RemainingBytes())
	assert.Equal(t, -1, rx.CRCCheck())
}

func TestPlainRejects(t *testing.T) {
	t.Run("short length", func(t *testing.T) {
		rx := NewPlain()
		rx.NewPacket(queue.New(32), RX)
		rx.NewFrame()
		rx.Decode(NewBuffer([]byte{2, 0, 0}))
		assert.Equal(t, 0, rx.RemainingBytes())
		assert.Equal(t, -1, rx.CRCCheck())
	})
	t.Run("queue overrun", func(t *testing.T) {
		txq := queue.New(64)
		require.NoError(t, AppendFrame(txq, make([]byte, 20)))
		tx := NewPlain()
		tx.NewPacket(txq, TX)
		tx.NewFrame()
		f := &Buffer{}
		tx.Encode(f)

		rxq := queue.New(8)
		rx := NewPlain()
		rx.NewPacket(rxq, RX)
		rx.NewFrame()
		rx.Decode(f)
		assert.Equal(t, 0, rx.RemainingBytes())
		assert.Equal(t, -1, rx.CRCCheck())
		assert.Equal(t, 8, rxq.Putcursor)
	})
}

func TestFECRoundTrip(t *testing.T) {
	txq, rxq := queue.New(64), queue.New(64)
	require.NoError(t, AppendFrame(txq, []byte("forward error correction")))
	require.NoError(t, AppendFrame(txq, []byte("2nd")))

	air, crcs := transfer(t, NewFEC(), NewFEC(), txq, rxq, 10)
	assert.Equal(t, []int{0, 0}, crcs)
	assert.Equal(t, []byte("2nd"), Payload(rxq.Frame()))
	assert.Equal(t, EncodedLen(28, false)+EncodedLen(7, false), len(air))
}

func TestFECRepair(t *testing.T) {
	txq := queue.New(64)
	require.NoError(t, AppendFrame(txq, []byte("repair me please")))
	tx := NewFEC()
	tx.NewPacket(txq, TX)
	tx.NewFrame()
	f := &Buffer{}
	tx.Encode(f)
	air := append([]byte(nil), f.Bytes()...)

	// Damage two data shards, that is as much as the parity can fix.
	air[1+2] ^= 0xff
	air[1+3*(shardSize+1)] ^= 0x01

	rxq := queue.New(64)
	rx := NewFEC()
	rx.NewPacket(rxq, RX)
	rx.NewFrame()
	rx.Decode(NewBuffer(air))
	require.Equal(t, 0, rx.RemainingBytes())
	assert.Equal(t, 0, rx.CRCCheck())
	assert.Equal(t, []byte("repair me please"), Payload(rxq.Bytes()))

	// A third damaged shard is beyond repair.
	air[1+4*(shardSize+1)] ^= 0x01
	rxq.Empty()
	rx.NewPacket(rxq, RX)
	rx.NewFrame()
	rx.Decode(NewBuffer(air))
	assert.Equal(t, -1, rx.CRCCheck())
}

func TestFECBackground(t *testing.T) {
	txq, rxq := queue.New(16), queue.New(16)
	txq.Options[0], rxq.Options[0] = queue.Background, queue.Background
	require.NoError(t, AppendBackground(txq, [BackgroundData]byte{9, 8, 7, 6, 5}))

	air, crcs := transfer(t, NewFEC(), NewFEC(), txq, rxq, 64)
	assert.Len(t, air, EncodedLen(BackgroundFrame, true))
	assert.Equal(t, []int{0}, crcs)
	assert.Equal(t, []byte{9, 8, 7, 6, 5}, rxq.Bytes())
}

func TestLimit(t *testing.T) {
	b := &Buffer{Cap: 16}
	l := Limit(b, 5)
	assert.Equal(t, 5, l.Room())
	assert.Equal(t, 3, l.Write([]byte{1, 2, 3}))
	assert.Equal(t, 2, l.Write([]byte{4, 5, 6}))
	assert.Equal(t, 0, l.Room())
	assert.Equal(t, 5, b.Len())
}

func TestAppendFrameErrors(t *testing.T) {
	assert.ErrorIs(t, AppendFrame(queue.New(300), make([]byte, 252)), ErrTooLong)
	assert.ErrorIs(t, AppendFrame(queue.New(4), make([]byte, 3)), queue.ErrFull)
	assert.Nil(t, Payload([]byte{1}))
}

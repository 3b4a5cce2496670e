// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package session

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRand(v byte) Option { return WithRand(func() byte { return v }) }

func checkInvariant(t *testing.T, s *Scheduler) {
	t.Helper()
	require.Equal(t, s.Depth()-1, s.NumFree()+s.Len())
}

func TestFreeInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for depth := 2; depth <= 8; depth++ {
		s := New(depth)
		checkInvariant(t, s)
		for i := 0; i < 200; i++ {
			switch rng.Intn(6) {
			case 0, 1:
				if s.Len() < depth-1 {
					require.NotNil(t, s.New(nil, uint16(rng.Intn(100)), 0x10, ReqTX))
				} else {
					require.Nil(t, s.New(nil, 0, 0x10, ReqTX))
				}
			case 2:
				if s.Len() < depth-1 {
					require.NotNil(t, s.Extend(nil, 0, 0x10, ReqRX))
				}
			case 3:
				s.Pop()
			case 4:
				s.Flush()
			case 5:
				s.Refresh(uint16(rng.Intn(50)))
			}
			checkInvariant(t, s)
			assert.LessOrEqual(t, s.Len(), depth-1)
		}
	}
}

func TestReservedSlot(t *testing.T) {
	s := New(3)
	require.NotNil(t, s.New(nil, 0, 1, ReqTX))
	require.NotNil(t, s.New(nil, 0, 2, ReqTX))
	assert.Equal(t, 0, s.NumFree())
	assert.Nil(t, s.New(nil, 0, 3, ReqTX), "last slot is reserved")

	require.NotNil(t, s.Continue(nil, RespRX, 5), "continuation uses the reserved slot")
	assert.Equal(t, -1, s.NumFree())
	checkInvariant(t, s)
	assert.Nil(t, s.Extend(nil, 0, 4, ReqTX))
}

func TestNewOrdering(t *testing.T) {
	s := New(6)
	a := s.New(nil, 10, 1, ReqTX)
	require.NotNil(t, a)
	assert.Equal(t, byte(1), s.Top().Channel)
	s.New(nil, 20, 2, ReqTX)
	s.New(nil, 30, 3, ReqTX)

	var chans []byte
	s.Each(func(x *Session) { chans = append(chans, x.Channel) })
	assert.Equal(t, []byte{1, 3, 2}, chans, "new sessions go just below the top")
	assert.Equal(t, 3, s.Count(Init))
}

func TestContinue(t *testing.T) {
	s := New(4, fixedRand(0xFF))
	top := s.New(nil, 0, 0x12, ReqTX|Synced|DSDialog)
	require.NotNil(t, top)
	top.Subnet, top.Extra, top.Flags = 0x5A, 7, FlagBackground
	top.Netstate &^= Init // dialog started

	c := s.Continue(nil, RespRX, 9)
	require.NotNil(t, c)
	assert.Equal(t, byte(0x00), c.DialogID, "dialog ID wraps from 255 to 0")
	assert.Equal(t, byte(Synced|DSDialog|Connected|RespRX), c.Netstate)
	assert.Equal(t, byte(0x12), c.Channel)
	assert.Equal(t, uint16(9), c.Counter)
	assert.Equal(t, byte(0x5A), c.Subnet)
	assert.Equal(t, byte(7), c.Extra)
	assert.Equal(t, byte(FlagBackground), c.Flags)

	s2 := New(4, fixedRand(41))
	s2.New(nil, 0, 1, ReqTX)
	assert.Equal(t, byte(42), s2.Continue(nil, ReqRX, 0).DialogID)

	assert.Nil(t, New(4).Continue(nil, ReqRX, 0), "nothing to continue")
}

func TestExtendPlacement(t *testing.T) {
	s := New(8)
	s.New(nil, 0, 1, ReqTX)
	s.Top().Netstate &^= Init
	s.New(nil, 0, 9, ReqTX) // pending dialog below the top
	s.Continue(nil, RespRX, 0)
	s.Continue(nil, RespTX, 0)

	var chans []byte
	s.Each(func(x *Session) { chans = append(chans, x.Channel) })
	assert.Equal(t, []byte{1, 1, 1, 9}, chans, "continuations stay ahead of pending dialogs")

	// Flush pops the whole running dialog and stops at the pending one.
	s.Flush()
	require.Equal(t, 1, s.Len())
	assert.Equal(t, byte(9), s.Top().Channel)
}

func TestGetNextRefresh(t *testing.T) {
	s := New(4)
	assert.Equal(t, uint16(NoSession), s.GetNext())
	s.New(nil, 100, 1, ReqTX)
	s.New(nil, 30, 2, ReqTX)
	s.Refresh(40)
	assert.Equal(t, uint16(60), s.Top().Counter)
	assert.Equal(t, uint16(0), s.At(1).Counter, "counters saturate at zero")
	assert.Equal(t, uint16(60), s.GetNext())
	assert.Equal(t, uint16(0), s.Top().Counter)
	assert.Equal(t, uint16(0), s.GetNext())
}

func TestPostponeInactives(t *testing.T) {
	s := New(5)
	s.New(nil, 10, 1, ReqTX)
	s.Top().Netstate &^= Init
	s.New(nil, 20, 2, ReqTX)
	s.New(nil, 0xFFF0, 3, ReqTX)

	s.PostponeInactives(5)
	assert.Equal(t, uint16(10), s.At(0).Counter, "running dialog is not postponed")
	assert.Equal(t, byte(3), s.At(1).Channel)
	assert.Equal(t, uint16(0xFFF5), s.At(1).Counter, "nearest pending dialog is postponed")
	assert.Equal(t, uint16(20), s.At(2).Counter)

	s.PostponeInactives(0x100)
	assert.Equal(t, uint16(0xFFFF), s.At(1).Counter, "saturates")
}

func TestScrapAndPurge(t *testing.T) {
	var scrapped []byte
	app := &Applet{Name: "app", Run: func(x *Session) {
		if x.Netstate&Scrap != 0 {
			scrapped = append(scrapped, x.Channel)
		}
	}}
	other := &Applet{Name: "other"}

	s := New(6)
	s.New(app, 0, 1, ReqTX)
	s.New(other, 0, 2, ReqTX)
	s.New(app, 0, 3, ReqTX)

	s.Scrap()
	assert.Equal(t, []byte{1}, scrapped)
	assert.Equal(t, 2, s.Len())
	checkInvariant(t, s)

	s.AppPurge(app)
	require.Equal(t, 2, s.Len(), "purge does not compact")
	assert.Nil(t, s.Top().Applet)
	assert.Equal(t, byte(Scrap), s.Top().Netstate)
	assert.Equal(t, other, s.At(1).Applet)

	s.Pop()
	s.Pop()
	s.Pop()
	s.Scrap()
	assert.Equal(t, 0, s.Len())
	checkInvariant(t, s)
}

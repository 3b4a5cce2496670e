// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package session schedules the dialogs that share the radio.
//
// Sessions live in a fixed number of slots and are kept in priority order, the top session
// being the one that is active or runs next. One slot is always held back for extending or
// continuing a dialog so that a dialog in progress can never be starved by new ones.
//
// The scheduler is owned by the link layer's kernel goroutine and is not safe for concurrent
// use.
package session

import (
	"io"
	"log/slog"
	"math/rand"
)

// Netstate bits.
const (
	DSMask     = 0x03 // association state
	Unassoc    = 0x00
	Synced     = 0x01
	Connected  = 0x02
	Associated = 0x03
	DSDialog   = 0x04 // datastream dialog

	TMask  = 0x30 // transaction direction
	ReqTX  = 0x00
	ReqRX  = 0x10
	RespTX = 0x20
	RespRX = 0x30

	Scrap = 0x40 // session was discarded
	Init  = 0x80 // dialog has not been started yet
)

// Flags bits.
const (
	FlagBackground = 0x01 // background (flood) dialog
)

// NoSession is returned by GetNext when nothing is scheduled.
const NoSession = 0xFFFF

// DefaultDepth is the number of slots used when none is given.
const DefaultDepth = 4

// Applet is the routine bound to a session. Run is called when the session is activated and
// when it is scrapped (with Scrap set in the netstate). Done, if set, receives the radio's
// completion reports. Applets are matched by pointer.
type Applet struct {
	Name string
	Run  func(s *Session)
	Done func(s *Session, main, frame int)
}

// Session is one scheduled dialog.
type Session struct {
	Applet   *Applet
	Counter  uint16 // ticks until activation
	Channel  byte
	Netstate byte
	DialogID byte
	Subnet   byte
	Extra    byte
	Flags    byte
}

// Scheduler holds the sessions.
type Scheduler struct {
	slots []Session
	used  []bool
	order []int // slot indexes, top first
	rand  func() byte
	log   *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger, the default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l.With("component", "session")
		}
	}
}

// WithRand sets the source of dialog IDs.
func WithRand(fn func() byte) Option { return func(s *Scheduler) { s.rand = fn } }

// New returns a scheduler with depth slots, depth must be at least 2.
func New(depth int, opts ...Option) *Scheduler {
	if depth < 2 {
		depth = DefaultDepth
	}
	s := &Scheduler{
		slots: make([]Session, depth),
		used:  make([]bool, depth),
		order: make([]int, 0, depth),
		rand:  func() byte { return byte(rand.Uint32()) },
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Depth returns the number of slots.
func (s *Scheduler) Depth() int { return len(s.slots) }

// Len returns the number of live sessions.
func (s *Scheduler) Len() int { return len(s.order) }

// NumFree returns the number of sessions New can still create. It is -1 while the reserved
// slot is in use.
func (s *Scheduler) NumFree() int { return len(s.slots) - 1 - len(s.order) }

// Top returns the top session or nil.
func (s *Scheduler) Top() *Session {
	if len(s.order) == 0 {
		return nil
	}
	return &s.slots[s.order[0]]
}

// At returns the session at position i, top being 0.
func (s *Scheduler) At(i int) *Session {
	if i < 0 || i >= len(s.order) {
		return nil
	}
	return &s.slots[s.order[i]]
}

// Each calls fn for every session from the top down.
func (s *Scheduler) Each(fn func(*Session)) {
	for _, i := range s.order {
		fn(&s.slots[i])
	}
}

// Count returns how many sessions have any of the netstate bits in mask set.
func (s *Scheduler) Count(mask byte) int {
	n := 0
	for _, i := range s.order {
		if s.slots[i].Netstate&mask != 0 {
			n++
		}
	}
	return n
}

// alloc claims a free slot and places it at position pos of the order.
func (s *Scheduler) alloc(pos int) *Session {
	for i := range s.slots {
		if s.used[i] {
			continue
		}
		s.used[i] = true
		s.slots[i] = Session{}
		s.order = append(s.order, 0)
		copy(s.order[pos+1:], s.order[pos:])
		s.order[pos] = i
		return &s.slots[i]
	}
	return nil
}

// remove drops the session at position pos.
func (s *Scheduler) remove(pos int) {
	s.used[s.order[pos]] = false
	s.order = append(s.order[:pos], s.order[pos+1:]...)
}

// New schedules a new dialog to start after wait ticks. The session goes just below the top
// (to the top if there is none) and is marked Init. It returns nil if only the reserved slot
// is left.
func (s *Scheduler) New(applet *Applet, wait uint16, channel, netstate byte) *Session {
	if s.NumFree() < 1 {
		s.log.Debug("new: no free session")
		return nil
	}
	pos := 1
	if len(s.order) == 0 {
		pos = 0
	}
	sess := s.alloc(pos)
	*sess = Session{
		Applet:   applet,
		Counter:  wait,
		Channel:  channel,
		Netstate: netstate | Init,
		DialogID: s.rand(),
	}
	s.log.Debug("new", "applet", appletName(applet), "wait", wait, "channel", channel,
		"netstate", sess.Netstate, "dialog", sess.DialogID)
	return sess
}

// Extend schedules a session that belongs to the dialog at the top: it goes after the run of
// sessions below the top that are not Init. It may use the reserved slot.
func (s *Scheduler) Extend(applet *Applet, wait uint16, channel, netstate byte) *Session {
	if len(s.order) >= len(s.slots) {
		s.log.Debug("extend: no free session")
		return nil
	}
	pos := 0
	if len(s.order) > 0 {
		pos = 1
		for pos < len(s.order) && s.slots[s.order[pos]].Netstate&Init == 0 {
			pos++
		}
	}
	sess := s.alloc(pos)
	*sess = Session{
		Applet:   applet,
		Counter:  wait,
		Channel:  channel,
		Netstate: netstate,
		DialogID: s.rand(),
	}
	s.log.Debug("extend", "applet", appletName(applet), "wait", wait, "pos", pos)
	return sess
}

// Continue schedules the next step of the dialog at the top, on the same channel. The new
// session is connected, carries nextState and the next dialog ID.
func (s *Scheduler) Continue(applet *Applet, nextState byte, wait uint16) *Session {
	top := s.Top()
	if top == nil {
		return nil
	}
	parent := *top
	sess := s.Extend(applet, wait, parent.Channel, (parent.Netstate&0x0F)|Connected|nextState)
	if sess == nil {
		return nil
	}
	sess.Extra = parent.Extra
	sess.DialogID = parent.DialogID + 1
	sess.Subnet = parent.Subnet
	sess.Flags = parent.Flags
	return sess
}

// GetNext returns the top session's counter and zeroes it, the caller owns the wait.
func (s *Scheduler) GetNext() uint16 {
	top := s.Top()
	if top == nil {
		return NoSession
	}
	wait := top.Counter
	top.Counter = 0
	return wait
}

// Refresh advances time by elapsed ticks.
func (s *Scheduler) Refresh(elapsed uint16) {
	for _, i := range s.order {
		if s.slots[i].Counter > elapsed {
			s.slots[i].Counter -= elapsed
		} else {
			s.slots[i].Counter = 0
		}
	}
}

// Pop discards the top session.
func (s *Scheduler) Pop() {
	if len(s.order) > 0 {
		s.remove(0)
	}
}

// Scrap marks the top session, lets its applet know, and discards it.
func (s *Scheduler) Scrap() {
	top := s.Top()
	if top == nil {
		return
	}
	top.Netstate |= Scrap
	s.log.Debug("scrap", "applet", appletName(top.Applet), "dialog", top.DialogID)
	if top.Applet != nil && top.Applet.Run != nil {
		top.Applet.Run(top)
	}
	// The applet may have rearranged the stack.
	for pos, i := range s.order {
		if &s.slots[i] == top {
			s.remove(pos)
			return
		}
	}
}

// AppPurge detaches applet from all sessions and marks them scrapped. The sessions stay where
// they are and are retired when they reach the top.
func (s *Scheduler) AppPurge(applet *Applet) {
	for _, i := range s.order {
		if s.slots[i].Applet == applet {
			s.slots[i].Applet = nil
			s.slots[i].Netstate = Scrap
		}
	}
}

// Flush discards the top dialog: sessions are popped until one marked Init is on top.
func (s *Scheduler) Flush() {
	for len(s.order) > 0 && s.slots[s.order[0]].Netstate&Init == 0 {
		s.remove(0)
	}
}

// PostponeInactives delays the nearest dialog that has not started by delta ticks.
func (s *Scheduler) PostponeInactives(delta uint16) {
	for _, i := range s.order {
		if s.slots[i].Netstate&Init != 0 {
			c := uint32(s.slots[i].Counter) + uint32(delta)
			if c > 0xFFFF {
				c = 0xFFFF
			}
			s.slots[i].Counter = uint16(c)
			return
		}
	}
}

func appletName(a *Applet) string {
	if a == nil {
		return "-"
	}
	return a.Name
}

// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package kernel

import (
	"time"

	"github.com/tve/dash7/radio"
)

type timerEvent struct {
	gen uint64
	ev  radio.Event
}

// Timer is the MAC timer handed to the radio. Expiries are delivered through the kernel loop,
// so the radio sees them on the same goroutine as everything else. Schedule and Cancel must
// be called from the kernel goroutine.
type Timer struct {
	tick time.Duration
	gen  uint64
	t    *time.Timer
	c    chan timerEvent
	quit chan struct{}
}

// NewTimer returns a MAC timer counting in units of tick.
func NewTimer(tick time.Duration) *Timer {
	return &Timer{tick: tick, c: make(chan timerEvent), quit: make(chan struct{})}
}

// Schedule posts ev after ticks ticks, replacing whatever was pending.
func (t *Timer) Schedule(ticks int, ev radio.Event) {
	t.Cancel()
	gen := t.gen
	t.t = time.AfterFunc(time.Duration(ticks)*t.tick, func() {
		select {
		case t.c <- timerEvent{gen, ev}:
		case <-t.quit:
		}
	})
}

// Cancel drops the pending event, if any.
func (t *Timer) Cancel() {
	t.gen++
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}

// valid reports whether a received event is the one currently scheduled.
func (t *Timer) valid(e timerEvent) bool { return e.gen == t.gen }

// close releases expiries that are still trying to reach a stopped loop.
func (t *Timer) close() {
	t.Cancel()
	close(t.quit)
}

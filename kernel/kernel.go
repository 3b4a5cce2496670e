// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package kernel runs the link layer: it counts down the scheduled sessions, activates the
// one at the top when it is due, hands it to the radio, and retires it when the radio is done.
//
// Everything that touches the scheduler or the radio happens on the goroutine running
// Kernel.Run: radio interrupts, MAC timer expiries and requests from other goroutines all
// arrive through its select loop.
package kernel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/tve/dash7/radio"
	"github.com/tve/dash7/session"
	"github.com/tve/dash7/thread"
)

// ErrStopped is returned by requests made after the kernel has stopped.
var ErrStopped = errors.New("kernel: stopped")

// Config holds the MAC parameters applied to every dialog.
type Config struct {
	Tick       time.Duration // duration of one tick
	TxChannels []byte        // channels tried after the session's own
	CSMA       bool          // clear channel assessment before sending
	TCA        int           // contention period in ticks
	RxTimeout  int           // RX window in ticks
	Backoff    uint16        // ticks the next dialog is held back after a busy channel
	Flood      int           // background flood duration in ticks
	FrameGuard time.Duration // longest a frame may take once its sync word is in
	Realtime   bool          // run the loop on a realtime OS thread
}

const (
	DefaultTick       = time.Second / 1024 // a DASH7 tick
	DefaultFlood      = 256                // ticks
	DefaultFrameGuard = time.Second
)

// Kernel ties a scheduler to a radio.
type Kernel struct {
	cfg     Config
	sched   *session.Scheduler
	radio   *radio.Radio
	timer   *Timer
	events  <-chan radio.Event
	reqs    chan func()
	stopped chan struct{}
	active  *session.Session // session whose dialog is on the air
	guard   *time.Timer      // runs while a frame is arriving
	last    time.Time        // time up to which counters have been refreshed
	log     *slog.Logger
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the logger, the default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) {
		if l != nil {
			k.log = l.With("component", "kernel")
		}
	}
}

// New returns a kernel. The timer must be the one the radio was created with and events
// carries the radio's interrupts, it may be nil.
func New(cfg Config, sched *session.Scheduler, r *radio.Radio, timer *Timer,
	events <-chan radio.Event, opts ...Option) *Kernel {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.Flood <= 0 {
		cfg.Flood = DefaultFlood
	}
	if cfg.FrameGuard <= 0 {
		cfg.FrameGuard = DefaultFrameGuard
	}
	k := &Kernel{
		cfg:     cfg,
		sched:   sched,
		radio:   r,
		timer:   timer,
		events:  events,
		reqs:    make(chan func()),
		stopped: make(chan struct{}),
		guard:   time.NewTimer(time.Hour),
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	k.guard.Stop()
	for _, o := range opts {
		o(k)
	}
	return k
}

// Run services the link layer until ctx is done. On the way out the radio is stopped and
// every session left is scrapped.
func (k *Kernel) Run(ctx context.Context) error {
	defer close(k.stopped)
	defer k.timer.close()
	if k.cfg.Realtime {
		if err := thread.Realtime(); err != nil {
			k.log.Warn("cannot switch to realtime scheduling", "error", err)
		}
	}

	wake := time.NewTimer(time.Hour)
	defer wake.Stop()
	defer k.guard.Stop()
	k.last = time.Now()
	k.log.Info("running", "tick", k.cfg.Tick, "depth", k.sched.Depth())

	for {
		k.refresh(time.Now())
		if wait, ok := k.dispatch(); ok {
			wake.Reset(time.Duration(wait) * k.cfg.Tick)
		} else {
			wake.Stop()
		}

		select {
		case <-ctx.Done():
			k.shutdown()
			return ctx.Err()
		case ev, ok := <-k.events:
			if !ok {
				k.events = nil
				continue
			}
			k.radio.OnEvent(ev)
		case e := <-k.timer.c:
			if k.timer.valid(e) {
				k.radio.OnEvent(e.ev)
			}
		case fn := <-k.reqs:
			fn()
		case <-k.guard.C:
			if k.radio.State().Mode == radio.DataRX {
				k.log.Warn("frame did not complete", "guard", k.cfg.FrameGuard)
				k.radio.Kill()
			}
		case <-wake.C:
		}
	}
}

// Do runs fn on the kernel goroutine and waits for it to complete. Sessions added by fn are
// counted down from the time of the call.
func (k *Kernel) Do(ctx context.Context, fn func(s *session.Scheduler)) error {
	done := make(chan struct{})
	req := func() {
		k.refresh(time.Now())
		fn(k.sched)
		close(done)
	}
	select {
	case k.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-k.stopped:
		return ErrStopped
	}
	<-done
	return nil
}

// Purge detaches applet from all its sessions.
func (k *Kernel) Purge(ctx context.Context, applet *session.Applet) error {
	return k.Do(ctx, func(s *session.Scheduler) { s.AppPurge(applet) })
}

// Radio runs fn with the radio on the kernel goroutine, for tools that need direct access
// while no dialog is active.
func (k *Kernel) Radio(ctx context.Context, fn func(r *radio.Radio)) error {
	return k.Do(ctx, func(*session.Scheduler) { fn(k.radio) })
}

// Hold is the radio's link hold: a frame has started arriving. Nothing else is started until
// the frame is complete, and a frame that never completes is aborted after FrameGuard. It
// must be called on the kernel goroutine.
func (k *Kernel) Hold() {
	k.log.Debug("frame arriving", "rssi", k.radio.LastRSSI())
	k.guard.Reset(k.cfg.FrameGuard)
}

// refresh counts the sessions down by the ticks elapsed since the last refresh.
func (k *Kernel) refresh(now time.Time) {
	n := now.Sub(k.last) / k.cfg.Tick
	if n <= 0 {
		return
	}
	k.last = k.last.Add(n * k.cfg.Tick)
	k.sched.Refresh(uint16(min(n, 0xFFFF)))
}

// dispatch starts the top session if it is due. Otherwise it returns the ticks until it is.
func (k *Kernel) dispatch() (uint16, bool) {
	for k.active == nil && !k.radio.Busy() {
		top := k.sched.Top()
		if top == nil {
			return 0, false
		}
		if top.Counter > 0 {
			return top.Counter, true
		}
		k.activate(top)
	}
	return 0, false
}

// activate runs the session's applet and starts its transaction on the radio.
func (k *Kernel) activate(s *session.Session) {
	if s.Applet != nil && s.Applet.Run != nil && s.Netstate&session.Scrap == 0 {
		s.Applet.Run(s)
	}
	if s.Netstate&session.Scrap != 0 {
		k.log.Debug("dropping scrapped session", "channel", s.Channel)
		if s == k.sched.Top() {
			k.sched.Pop()
		}
		return
	}
	s.Netstate &^= session.Init
	k.active = s

	comm := radio.Comm{
		TxChannels: append([]byte{s.Channel}, k.cfg.TxChannels...),
		CSMA:       k.cfg.CSMA,
		TCA:        k.cfg.TCA,
		RxTimeout:  k.cfg.RxTimeout,
		Flood:      k.cfg.Flood,
	}
	bg := s.Flags&session.FlagBackground != 0
	done := func(main, frame int) { k.done(s, main, frame) }
	k.log.Debug("activate", "channel", s.Channel, "netstate", s.Netstate, "dialog", s.DialogID)

	switch s.Netstate & session.TMask {
	case session.ReqTX, session.RespTX:
		k.radio.TxInit(s.Netstate, comm, bg, done)
		k.radio.OnEvent(radio.EvCCATimer)
	default:
		k.radio.RxInit(s.Channel, s.Netstate, comm, bg, done)
	}
}

// done receives the radio's reports for the active session.
func (k *Kernel) done(s *session.Session, main, frame int) {
	if s.Applet != nil && s.Applet.Done != nil {
		s.Applet.Done(s, main, frame)
	}
	if main > 0 {
		return
	}
	k.guard.Stop()
	k.active = nil
	switch radio.Status(main) {
	case radio.OK, radio.Timeout:
		if s == k.sched.Top() {
			k.sched.Pop()
		}
	case radio.CCAFail:
		k.log.Debug("channel busy", "channel", s.Channel)
		k.sched.Flush()
		k.sched.PostponeInactives(k.cfg.Backoff)
	default:
		k.log.Debug("dialog failed", "channel", s.Channel, "error", radio.Status(main))
		k.sched.Flush()
	}
}

// shutdown stops the radio and scraps every session.
func (k *Kernel) shutdown() {
	k.radio.Kill()
	for k.sched.Top() != nil {
		k.sched.Scrap()
	}
	k.log.Info("stopped")
}

// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tve/dash7/codec"
	"github.com/tve/dash7/kernel"
	"github.com/tve/dash7/radio"
	"github.com/tve/dash7/session"
)

// RxPacket is published on <prefix>/rx for every frame received.
type RxPacket struct {
	Channel    byte      `json:"channel"`
	Background bool      `json:"background,omitempty"`
	Frame      []byte    `json:"frame"`   // frame as queued: length, continuation, payload
	Payload    []byte    `json:"payload"` // payload only
	RSSI       int       `json:"rssi"`    // dBm at sync detection
	CRCOK      bool      `json:"crc_ok"`
	Format     string    `json:"format,omitempty"` // name of the decoded payload format
	Data       any       `json:"data,omitempty"`   // decoded payload
	At         time.Time `json:"at"`
}

// TxPacket is expected on <prefix>/tx.
type TxPacket struct {
	Channel    byte   `json:"channel"`
	Payload    []byte `json:"payload"`
	Background bool   `json:"background,omitempty"` // payload must then be 5 bytes
	Wait       uint16 `json:"wait,omitempty"`       // ticks before the dialog starts
}

// TxStatus is published on <prefix>/txstatus when a transmission completes.
type TxStatus struct {
	Channel byte   `json:"channel"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// publisher is what the gateway needs from the MQTT side.
type publisher interface {
	Publish(suffix string, payload any) error
}

// linkLayer is what the gateway needs from the link layer.
type linkLayer interface {
	Do(ctx context.Context, fn func(s *session.Scheduler)) error
}

// gateway bridges one radio to MQTT. Applet callbacks run on the kernel goroutine and only hand
// data over, publishing happens on the gateway's own goroutine.
type gateway struct {
	link     linkLayer
	radio    *radio.Radio
	mq       publisher
	channel  byte // channel listened on
	bg       bool // listen for background frames
	listener *session.Applet
	rx       chan RxPacket
	txDone   chan TxStatus
	rearm    chan struct{}
	log      *slog.Logger
}

const (
	rxBacklog   = 32              // frames waiting to be published
	rearmPeriod = 1 * time.Second // retry when the scheduler is full
)

func newGateway(link linkLayer, r *radio.Radio, pub publisher, channel byte, bg bool,
	log *slog.Logger) *gateway {
	g := &gateway{
		link:    link,
		radio:   r,
		mq:      pub,
		channel: channel,
		bg:      bg,
		rx:      make(chan RxPacket, rxBacklog),
		txDone:  make(chan TxStatus, rxBacklog),
		rearm:   make(chan struct{}, 1),
		log:     log.With("component", "gateway"),
	}
	g.listener = &session.Applet{Name: "listen", Done: g.received}
	return g
}

// Run keeps a listen session scheduled and publishes what comes in until ctx is done.
func (g *gateway) Run(ctx context.Context) error {
	go g.publish(ctx)
	for {
		ok := false
		err := g.link.Do(ctx, func(s *session.Scheduler) {
			sess := s.New(g.listener, 0, g.channel, session.ReqRX)
			if sess != nil && g.bg {
				sess.Flags |= session.FlagBackground
			}
			ok = sess != nil
		})
		if errors.Is(err, context.Canceled) || errors.Is(err, kernel.ErrStopped) {
			return nil
		}
		if err != nil {
			return err
		}
		var retry <-chan time.Time
		if !ok {
			g.log.Warn("scheduler full, cannot listen")
			retry = time.After(rearmPeriod)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-g.rearm:
		case <-retry:
		}
	}
}

// received is the listener's completion callback.
func (g *gateway) received(s *session.Session, main, frame int) {
	if main >= 0 {
		q := g.radio.RxQueue()
		pkt := RxPacket{
			Channel:    s.Channel,
			Background: s.Flags&session.FlagBackground != 0,
			Frame:      append([]byte(nil), q.Frame()...),
			RSSI:       g.radio.LastRSSI(),
			CRCOK:      frame == 0,
			At:         time.Now(),
		}
		select {
		case g.rx <- pkt:
		default:
			g.log.Warn("rx backlog full, dropping frame", "channel", s.Channel)
		}
	} else if radio.Status(main) != radio.Timeout {
		g.log.Debug("listen ended", "status", radio.Status(main))
	}
	if main <= 0 {
		select {
		case g.rearm <- struct{}{}:
		default:
		}
	}
}

// publish decodes and publishes received frames and TX completions.
func (g *gateway) publish(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt := <-g.rx:
			g.decode(&pkt)
			g.log.Info("rx", "channel", pkt.Channel, "len", len(pkt.Payload), "rssi", pkt.RSSI,
				"crc_ok", pkt.CRCOK, "format", pkt.Format)
			if err := g.mq.Publish("rx", pkt); err != nil {
				g.log.Warn("cannot publish", "error", err)
			}
		case st := <-g.txDone:
			if err := g.mq.Publish("txstatus", st); err != nil {
				g.log.Warn("cannot publish", "error", err)
			}
		}
	}
}

// decode fills in the payload and its decoded form.
func (g *gateway) decode(pkt *RxPacket) {
	if pkt.Background {
		pkt.Payload = pkt.Frame
		return
	}
	pkt.Payload = codec.Payload(pkt.Frame)
	if !pkt.CRCOK {
		return
	}
	name, data, err := decodePayload(pkt.Payload)
	if err != nil {
		g.log.Debug("cannot decode payload", "format", name, "error", err)
	}
	pkt.Format, pkt.Data = name, data
}

// Transmit schedules a dialog sending p.
func (g *gateway) Transmit(ctx context.Context, p TxPacket) error {
	var bg [codec.BackgroundData]byte
	if p.Background {
		if len(p.Payload) != codec.BackgroundData {
			return errors.New("background frames carry exactly 5 bytes")
		}
		copy(bg[:], p.Payload)
	} else if len(p.Payload)+codec.Overhead > codec.MaxFrame {
		return codec.ErrTooLong
	}

	app := &session.Applet{
		Name: "mqtt-tx",
		Run: func(s *session.Session) {
			if s.Netstate&session.Scrap != 0 {
				return
			}
			q := g.radio.TxQueue()
			q.Empty()
			var err error
			if p.Background {
				err = codec.AppendBackground(q, bg)
			} else {
				err = codec.AppendFrame(q, p.Payload)
			}
			if err != nil {
				g.log.Warn("cannot queue frame", "error", err)
				s.Netstate |= session.Scrap
			}
		},
		Done: func(s *session.Session, main, frame int) {
			if main > 0 {
				return
			}
			st := TxStatus{Channel: s.Channel, OK: main == 0}
			if main < 0 {
				st.Error = radio.Status(main).Error()
			}
			select {
			case g.txDone <- st:
			default:
			}
		},
	}

	var added bool
	err := g.link.Do(ctx, func(s *session.Scheduler) {
		sess := s.New(app, p.Wait, p.Channel, session.ReqTX)
		if sess != nil && p.Background {
			sess.Flags |= session.FlagBackground
		}
		added = sess != nil
	})
	if err != nil {
		return err
	}
	if !added {
		return errors.New("scheduler full")
	}
	return nil
}

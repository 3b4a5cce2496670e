// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// D7test sends or receives DASH7 frames from the command line for bench testing.
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	_ "github.com/kidoman/embd/host/chip"

	"github.com/tve/dash7/cmd/cli"
	"github.com/tve/dash7/codec"
	"github.com/tve/dash7/link"
	"github.com/tve/dash7/radio"
	"github.com/tve/dash7/session"
	"github.com/tve/dash7/varint"
)

// CLI is the root command structure for d7test.
type CLI struct {
	cli.Globals

	Send   SendCmd   `cmd:"" help:"Send frames."`
	Listen ListenCmd `cmd:"" help:"Receive frames and print them."`
}

// SendCmd sends frames.
type SendCmd struct {
	Channel    cli.ChannelID `name:"channel" help:"Channel to send on." default:"0x12"`
	Background bool          `name:"background" help:"Send background frames, the payload is padded to 5 bytes."`
	Count      int           `name:"count" short:"n" help:"Number of frames." default:"1"`
	Interval   time.Duration `name:"interval" help:"Pause between frames." default:"1s"`
	Numbers    []int         `name:"numbers" help:"Send a list of numbers in the varint payload format."`
	Payload    cli.Hex       `arg:"" optional:"" help:"Payload in hex."`
}

// ListenCmd receives frames.
type ListenCmd struct {
	Channel    cli.ChannelID `name:"channel" help:"Channel to listen on." default:"0x12"`
	Background bool          `name:"background" help:"Listen for background frames."`
	Count      int           `name:"count" short:"n" help:"Stop after this many frames, 0 for no end." default:"0"`
}

// formatNumbers marks a payload holding a list of varints.
const formatNumbers = 1

// buildPayload returns the payload to send.
func buildPayload(payload []byte, numbers []int, bg bool) ([]byte, error) {
	if len(numbers) > 0 {
		if len(payload) > 0 {
			return nil, errors.New("give either a payload or numbers")
		}
		payload = varint.Append([]byte{formatNumbers}, numbers...)
	}
	if bg {
		if len(payload) > codec.BackgroundData {
			return nil, fmt.Errorf("background frames carry at most %d bytes", codec.BackgroundData)
		}
		var data [codec.BackgroundData]byte
		copy(data[:], payload)
		return data[:], nil
	}
	if len(payload)+codec.Overhead > codec.MaxFrame {
		return nil, codec.ErrTooLong
	}
	return payload, nil
}

// doer runs requests on the kernel goroutine.
type doer interface {
	Do(ctx context.Context, fn func(s *session.Scheduler)) error
}

// dialog schedules one session and waits for its final report. run is called when the session
// starts, frame for each frame reported; both run on the kernel goroutine.
func dialog(ctx context.Context, k doer, channel, netstate byte, bg bool,
	run func(s *session.Session), frame func(s *session.Session, crc int)) (radio.Status, error) {
	done := make(chan int, 1)
	app := &session.Applet{
		Name: "d7test",
		Run: func(s *session.Session) {
			if s.Netstate&session.Scrap == 0 && run != nil {
				run(s)
			}
		},
		Done: func(s *session.Session, main, crc int) {
			if main >= 0 && frame != nil {
				frame(s, crc)
			}
			if main <= 0 {
				done <- main
			}
		},
	}

	var added bool
	err := k.Do(ctx, func(sc *session.Scheduler) {
		s := sc.New(app, 0, channel, netstate)
		if s != nil && bg {
			s.Flags |= session.FlagBackground
		}
		added = s != nil
	})
	if err != nil {
		return 0, err
	}
	if !added {
		return 0, errors.New("scheduler full")
	}
	select {
	case m := <-done:
		return radio.Status(m), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// start opens the link and runs it until the returned stop function is called.
func start(g *cli.Globals) (context.Context, *link.Link, func() error, error) {
	cfg, log, err := g.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	l, err := link.Open(cfg, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open radio: %w", err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	stop := func() error {
		cancel()
		err := <-errc
		return errors.Join(err, l.Close())
	}
	return ctx, l, stop, nil
}

// Run executes the send command.
func (c *SendCmd) Run(g *cli.Globals) error {
	payload, err := buildPayload(c.Payload, c.Numbers, c.Background)
	if err != nil {
		return err
	}
	ctx, l, stop, err := start(g)
	if err != nil {
		return err
	}

	fill := func(s *session.Session) {
		q := l.Radio.TxQueue()
		q.Empty()
		if c.Background {
			var data [codec.BackgroundData]byte
			copy(data[:], payload)
			codec.AppendBackground(q, data)
		} else {
			codec.AppendFrame(q, payload)
		}
	}
	for n := 0; n < c.Count && err == nil; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.Interval):
			}
		}
		var st radio.Status
		st, err = dialog(ctx, l.Kernel, byte(c.Channel), session.ReqTX, c.Background, fill, nil)
		if err == nil {
			fmt.Printf("sent %d bytes on %s: %v\n", len(payload), c.Channel, st.Error())
		}
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(err, stop())
}

// Run executes the listen command.
func (c *ListenCmd) Run(g *cli.Globals) error {
	ctx, l, stop, err := start(g)
	if err != nil {
		return err
	}

	got := 0
	frame := func(s *session.Session, crc int) {
		data := l.Radio.RxQueue().Frame()
		if !c.Background {
			data = codec.Payload(data)
		}
		status := "ok"
		if crc != 0 {
			status = "bad crc"
		}
		fmt.Printf("%s rssi %d dBm %s: % x\n", c.Channel, l.Radio.LastRSSI(), status, data)
		got++
	}
	for c.Count == 0 || got < c.Count {
		_, err = dialog(ctx, l.Kernel, byte(c.Channel), session.ReqRX, c.Background, nil, frame)
		if err != nil {
			break
		}
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(err, stop())
}

func main() {
	var c CLI
	ctx := kong.Parse(&c, cli.Options("d7test", "Send and receive DASH7 frames.")...)
	ctx.FatalIfErrorf(ctx.Run(&c.Globals))
}

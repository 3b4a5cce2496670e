// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// D7gw is a gateway between a DASH7 radio and an MQTT broker. Frames received on the listen
// channel are published on <prefix>/rx, frames published on <prefix>/tx are sent.
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	_ "github.com/kidoman/embd/host/chip"

	"github.com/tve/dash7/cmd/cli"
	"github.com/tve/dash7/link"
)

// CLI is the root command structure for d7gw.
type CLI struct {
	cli.Globals

	Serve  ServeCmd  `cmd:"" default:"1" help:"Run the gateway."`
	Decode DecodeCmd `cmd:"" help:"Decode a payload the way the gateway would."`
}

// ServeCmd runs the gateway.
type ServeCmd struct {
	Broker     string        `name:"broker" help:"MQTT broker URL, overrides the config file."`
	Prefix     string        `name:"prefix" help:"MQTT topic prefix, overrides the config file."`
	Channel    cli.ChannelID `name:"channel" help:"Channel to listen on." default:"0x12"`
	Background bool          `name:"background" help:"Listen for background frames."`
}

// Run executes the serve command.
func (c *ServeCmd) Run(g *cli.Globals) error {
	cfg, log, err := g.Load()
	if err != nil {
		return err
	}
	if c.Broker != "" {
		cfg.MQTT.Broker = c.Broker
	}
	if c.Prefix != "" {
		cfg.MQTT.Prefix = c.Prefix
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mq, err := newMQ(cfg.MQTT, log)
	if err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	defer mq.Close()
	go mq.gc(ctx)

	l, err := link.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open radio: %w", err)
	}
	defer l.Close()

	gw := newGateway(l.Kernel, l.Radio, mq, byte(c.Channel), c.Background, log)
	err = mq.Subscribe("tx", func(m Message) {
		var p TxPacket
		if err := mq.Decode(m, &p); err != nil {
			log.Warn("bad tx request", "error", err)
			return
		}
		if err := gw.Transmit(ctx, p); err != nil {
			log.Warn("cannot transmit", "channel", p.Channel, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	log.Info("gateway is ready", "channel", c.Channel, "prefix", cfg.MQTT.Prefix)
	gwErr := gw.Run(ctx)
	cancel()
	return errors.Join(gwErr, <-errc)
}

// DecodeCmd decodes a hex payload.
type DecodeCmd struct {
	Payload cli.Hex `arg:"" help:"Payload in hex, starting with the format byte."`
}

// Run executes the decode command.
func (c *DecodeCmd) Run() error {
	name, v, err := decodePayload(c.Payload)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("unknown payload format")
	}
	fmt.Printf("%s: %v\n", name, v)
	return nil
}

func main() {
	var c CLI
	ctx := kong.Parse(&c, cli.Options("d7gw", "DASH7 to MQTT gateway.")...)
	ctx.FatalIfErrorf(ctx.Run(&c.Globals))
}

// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// D7scan sweeps the configured channels and prints the RSSI seen on each next to its CCA
// threshold.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	_ "github.com/kidoman/embd/host/chip"

	"github.com/tve/dash7"
	"github.com/tve/dash7/cmd/cli"
	"github.com/tve/dash7/link"
	"github.com/tve/dash7/phymac"
	"github.com/tve/dash7/radio"
	"github.com/tve/dash7/spimux"
	"github.com/tve/dash7/sx1231"
)

// CLI is the root command structure for d7scan.
type CLI struct {
	cli.Globals

	Scan  ScanCmd  `cmd:"" default:"withargs" help:"Sweep channels."`
	Probe ProbeCmd `cmd:"" help:"Check that the radio chip answers on the SPI bus."`
}

// ScanCmd sweeps channels.
type ScanCmd struct {
	Channels []cli.ChannelID `arg:"" optional:"" help:"Channels to scan, default all configured."`
	Count    int             `name:"count" short:"n" help:"Number of sweeps, 0 for no end." default:"1"`
	Interval time.Duration   `name:"interval" help:"Pause between sweeps." default:"1s"`
}

// Sample is the result of assessing one channel.
type Sample struct {
	Channel byte
	RSSI    int // dBm
	CCAThr  int // dBm
	Clear   bool
	Err     error
}

// assessor runs fn with the radio, Kernel.Radio in the real thing.
type assessor func(ctx context.Context, fn func(r *radio.Radio)) error

// sweep assesses each channel once.
func sweep(ctx context.Context, run assessor, channels []byte) ([]Sample, error) {
	res := make([]Sample, 0, len(channels))
	for _, id := range channels {
		s := Sample{Channel: id}
		err := run(ctx, func(r *radio.Radio) {
			s.RSSI, s.Clear, s.Err = r.Assess(id)
			if s.Err == nil {
				s.CCAThr = phymac.RSSIToDBm(r.Channels().PHY.CCAThr)
			}
		})
		if err != nil {
			return res, err
		}
		res = append(res, s)
	}
	return res, nil
}

func report(w io.Writer, samples []Sample) {
	for _, s := range samples {
		if s.Err != nil {
			fmt.Fprintf(w, "0x%02x  %v\n", s.Channel, s.Err)
			continue
		}
		state := "busy"
		if s.Clear {
			state = "clear"
		}
		fmt.Fprintf(w, "0x%02x  %4d dBm  cca %4d dBm  %s\n", s.Channel, s.RSSI, s.CCAThr, state)
	}
}

// Run executes the scan command.
func (c *ScanCmd) Run(g *cli.Globals) error {
	cfg, log, err := g.Load()
	if err != nil {
		return err
	}
	channels := make([]byte, 0, len(cfg.Channel))
	for _, id := range c.Channels {
		channels = append(channels, byte(id))
	}
	if len(channels) == 0 {
		for _, ch := range cfg.Channel {
			channels = append(channels, byte(ch.ID))
		}
	}
	if len(channels) == 0 {
		return fmt.Errorf("no channels to scan")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	l, err := link.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open radio: %w", err)
	}
	defer l.Close()
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()

	for n := 0; c.Count == 0 || n < c.Count; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.Interval):
			}
		}
		if ctx.Err() != nil {
			break
		}
		samples, err := sweep(ctx, l.Kernel.Radio, channels)
		report(os.Stdout, samples)
		if err != nil {
			break
		}
	}
	cancel()
	return <-errc
}

// ProbeCmd reads the chip version without initializing the radio.
type ProbeCmd struct{}

// probe reads the operation mode and version registers.
func probe(dev dash7.SPI) (byte, byte, error) {
	var mode, version [2]byte
	if err := dev.Tx([]byte{sx1231.REG_OPMODE, 0}, mode[:]); err != nil {
		return 0, 0, err
	}
	if err := dev.Tx([]byte{sx1231.REG_VERSION, 0}, version[:]); err != nil {
		return 0, 0, err
	}
	return mode[1], version[1], nil
}

// Run executes the probe command.
func (c *ProbeCmd) Run(g *cli.Globals) error {
	cfg, _, err := g.Load()
	if err != nil {
		return err
	}
	host, err := dash7.OpenHost(cfg.Radio.Host)
	if err != nil {
		return err
	}
	defer host.Close()
	dev, err := host.SPI(cfg.Radio.SPI, 1000000)
	if err != nil {
		return err
	}
	if cfg.Radio.CSMuxPin != "" {
		sel, err := host.GPIO(cfg.Radio.CSMuxPin)
		if err != nil {
			dev.Close()
			return err
		}
		lo, hi := spimux.New(dev, sel)
		if cfg.Radio.CSMuxValue == dash7.GpioLow {
			hi.Close()
			dev = lo
		} else {
			lo.Close()
			dev = hi
		}
	}
	defer dev.Close()

	opmode, version, err := probe(dev)
	if err != nil {
		return err
	}
	fmt.Printf("op-mode is %#x\n", opmode)
	switch version {
	case 0x23:
		fmt.Println("found sx1231: OK!")
	case 0x24:
		fmt.Println("found sx1231h: OK!")
	default:
		return fmt.Errorf("got version %#x instead of 0x23 or 0x24", version)
	}
	return nil
}

func main() {
	var c CLI
	ctx := kong.Parse(&c, cli.Options("d7scan", "Sweep DASH7 channels and report RSSI.")...)
	ctx.FatalIfErrorf(ctx.Run(&c.Globals))
}

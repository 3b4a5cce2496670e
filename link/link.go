// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package link assembles a running DASH7 link layer from a configuration: the hardware access
// library, the radio chip, the file store holding the channel table, and the radio, scheduler
// and kernel on top of them.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tve/dash7"
	"github.com/tve/dash7/codec"
	"github.com/tve/dash7/config"
	"github.com/tve/dash7/isf"
	"github.com/tve/dash7/isf/sqlite"
	"github.com/tve/dash7/kernel"
	"github.com/tve/dash7/phymac"
	"github.com/tve/dash7/radio"
	"github.com/tve/dash7/session"
	"github.com/tve/dash7/spimux"
	"github.com/tve/dash7/sx1231"
)

// Device is a transceiver together with its interrupt events.
type Device interface {
	radio.Transceiver
	Events() <-chan radio.Event
	Close() error
}

// Link is an assembled link layer. The scheduler and the radio belong to the kernel goroutine
// once Run has been called, reach them through Kernel.Do and Kernel.Radio.
type Link struct {
	Kernel    *kernel.Kernel
	Radio     *radio.Radio
	Scheduler *session.Scheduler
	Store     isf.Store
	closers   []func() error
	log       *slog.Logger
}

// Open opens the radio hardware described by cfg.Radio and assembles the link layer on it.
func Open(cfg config.Config, log *slog.Logger) (*Link, error) {
	var closers []func() error
	fail := func(err error) (*Link, error) {
		closeAll(closers)
		return nil, err
	}

	host, err := dash7.OpenHost(cfg.Radio.Host)
	if err != nil {
		return nil, err
	}
	closers = append(closers, host.Close)

	bus, err := host.SPI(cfg.Radio.SPI, int64(cfg.Radio.SpeedHz))
	if err != nil {
		return fail(err)
	}
	if cfg.Radio.CSMuxPin != "" {
		sel, err := host.GPIO(cfg.Radio.CSMuxPin)
		if err != nil {
			bus.Close()
			return fail(err)
		}
		lo, hi := spimux.New(bus, sel)
		if cfg.Radio.CSMuxValue == dash7.GpioLow {
			hi.Close()
			bus = lo
		} else {
			lo.Close()
			bus = hi
		}
	}

	dio0, err := host.GPIO(cfg.Radio.DIO0)
	if err != nil {
		bus.Close()
		return fail(err)
	}
	dio1, err := host.GPIO(cfg.Radio.DIO1)
	if err != nil {
		bus.Close()
		return fail(err)
	}

	chip := log.With("component", "sx1231")
	dev, err := sx1231.New(bus, dio0, dio1, sx1231.RadioOpts{
		Base:    cfg.Radio.BaseHz,
		Spacing: cfg.Radio.SpacingHz,
		PABoost: cfg.Radio.PABoost,
		Power:   cfg.Radio.Power,
		Logger: func(format string, v ...interface{}) {
			chip.Debug(fmt.Sprintf(format, v...))
		},
	})
	if err != nil {
		bus.Close()
		return fail(err)
	}

	// The device closes the bus from here on.
	l, err := New(cfg, dev, log)
	if err != nil {
		dev.Close()
		return fail(err)
	}
	l.closers = append(closers, l.closers...)
	return l, nil
}

// New assembles the link layer on an open device. The device is closed by Link.Close.
func New(cfg config.Config, dev Device, log *slog.Logger) (*Link, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	store, closeStore, err := OpenStore(cfg.Store.Path, cfg.Table())
	if err != nil {
		return nil, err
	}

	var k *kernel.Kernel
	opts := []radio.Option{radio.WithLogger(log), radio.WithLinkHold(func() { k.Hold() })}
	if cfg.MAC.FEC {
		opts = append(opts, radio.WithFEC(codec.NewFEC()))
	}
	if cfg.MAC.MFP {
		opts = append(opts, radio.WithMFP())
	}
	if cfg.MAC.Paging {
		opts = append(opts, radio.WithPaging())
	}

	kcfg := cfg.MAC.Kernel()
	timer := kernel.NewTimer(kcfg.Tick)
	r := radio.New(dev, phymac.FileTable{Store: store}, timer, opts...)
	if len(cfg.Channel) > 0 {
		// Start out tuned to the first configured channel.
		if id := byte(cfg.Channel[0].ID); !r.Channels().Lookup(id) {
			log.Warn("cannot tune to channel", "channel", id)
		}
	}
	sched := session.New(cfg.MAC.Depth, session.WithLogger(log))
	k = kernel.New(kcfg, sched, r, timer, dev.Events(), kernel.WithLogger(log))

	return &Link{
		Kernel:    k,
		Radio:     r,
		Scheduler: sched,
		Store:     store,
		closers:   []func() error{closeStore, dev.Close},
		log:       log.With("component", "link"),
	}, nil
}

// Run runs the kernel until ctx is done.
func (l *Link) Run(ctx context.Context) error {
	err := l.Kernel.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the device, the store and the hardware. The kernel must have stopped.
func (l *Link) Close() error {
	err := closeAll(l.closers)
	l.closers = nil
	if err != nil {
		l.log.Warn("close", "error", err)
	}
	return err
}

func closeAll(closers []func() error) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenStore opens the file store at path, in memory when path is empty. A store that has no
// channel configuration file is seeded with table, an existing file is left alone.
func OpenStore(path string, table phymac.StaticTable) (isf.Store, func() error, error) {
	data := phymac.EncodeTable(table)
	if path == "" {
		m := isf.NewMemory()
		m.Put(isf.ChannelConfig, data)
		return m, func() error { return nil }, nil
	}

	s, err := sqlite.New(path)
	if err != nil {
		return nil, nil, err
	}
	ok, err := s.Has(isf.ChannelConfig)
	if err == nil && !ok {
		err = s.Put(isf.ChannelConfig, data)
	}
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, s.Close, nil
}

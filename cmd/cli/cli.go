// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package cli holds the command-line plumbing shared by the DASH7 commands.
package cli

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/tve/dash7/config"
	"github.com/tve/dash7/logging"
	"github.com/tve/dash7/phymac"
)

// Globals are the flags every command takes.
type Globals struct {
	Config string `name:"config" short:"c" help:"Config file path." default:"${config_path}"`
	Log    string `name:"log" help:"Log spec (e.g., 'info,radio=debug'), overrides DASH7_LOG and the config file."`
}

// Options returns the kong configuration for a command.
func Options(name, description string) []kong.Option {
	return []kong.Option{
		kong.Name(name),
		kong.Description(description),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.TypeMapper(reflect.TypeOf(ChannelID(0)), channelIDMapper()),
		kong.TypeMapper(reflect.TypeOf(Hex(nil)), hexMapper()),
		kong.Vars{"config_path": config.DefaultPath},
	}
}

// Load reads the config file and builds the logger.
func (g *Globals) Load() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logging.New(cfg.Logging.Logger(g.Log))
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

// ChannelID is a channel given on the command line, in decimal or with a 0x prefix.
type ChannelID byte

// ParseChannelID parses a channel ID. The wildcard spectrum is not a channel one can tune to.
func ParseChannelID(s string) (ChannelID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid channel %q", s)
	}
	if byte(v)&phymac.SpectrumMask == phymac.Wildcard {
		return 0, fmt.Errorf("channel %q is the wildcard", s)
	}
	return ChannelID(v), nil
}

func (c ChannelID) String() string { return fmt.Sprintf("0x%02x", byte(c)) }

// Hex is a byte string given in hex, spaces and colons are ignored.
type Hex []byte

// ParseHex parses a hex byte string.
func ParseHex(s string) (Hex, error) {
	s = strings.NewReplacer(" ", "", ":", "").Replace(s)
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}

func channelIDMapper() kong.MapperFunc {
	return func(ctx *kong.DecodeContext, target reflect.Value) error {
		var s string
		if err := ctx.Scan.PopValueInto("channel", &s); err != nil {
			return err
		}
		id, err := ParseChannelID(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(id))
		return nil
	}
}

func hexMapper() kong.MapperFunc {
	return func(ctx *kong.DecodeContext, target reflect.Value) error {
		var s string
		if err := ctx.Scan.PopValueInto("hex", &s); err != nil {
			return err
		}
		b, err := ParseHex(s)
		if err != nil {
			return err
		}
		target.Set(reflect.ValueOf(b))
		return nil
	}
}

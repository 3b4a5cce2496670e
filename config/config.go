// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package config loads the configuration of the DASH7 commands.
//
// Loading starts from the defaults embedded from default.toml and overlays the values present
// in a config file. A missing file leaves the defaults in place, a file that does not parse or
// that carries unknown keys is an error. Command-line flags override the result in the
// commands themselves.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tve/dash7/kernel"
	"github.com/tve/dash7/logging"
	"github.com/tve/dash7/phymac"
)

//go:embed default.toml
var defaultTOML string

// DefaultPath is where the commands look for a config file.
const DefaultPath = "/etc/dash7/dash7.toml"

// Config is the top-level configuration.
type Config struct {
	Radio   RadioConfig     `toml:"radio"`
	MAC     MACConfig       `toml:"mac"`
	Channel []ChannelConfig `toml:"channel"`
	Store   StoreConfig     `toml:"store"`
	MQTT    MQTTConfig      `toml:"mqtt"`
	Logging LoggingConfig   `toml:"logging"`
}

// RadioConfig describes how to reach the transceiver.
type RadioConfig struct {
	Host       string `toml:"host"`     // embd or periph
	SPI        string `toml:"spi"`      // periph port name
	SpeedHz    int    `toml:"speed_hz"` // SPI clock
	DIO0       string `toml:"dio0"`
	DIO1       string `toml:"dio1"`
	CSMuxPin   string `toml:"cs_mux_pin"` // select pin of a shared chip select, empty if none
	CSMuxValue int    `toml:"cs_mux_value"`
	Power      int    `toml:"power"` // dBm
	PABoost    bool   `toml:"pa_boost"`
	BaseHz     uint32 `toml:"base_hz"`    // frequency of center index 0
	SpacingHz  uint32 `toml:"spacing_hz"` // distance between center indexes
}

// MACConfig holds the link layer parameters.
type MACConfig struct {
	Depth      int      `toml:"depth"` // session slots
	Tick       Duration `toml:"tick"`
	TxChannels []int    `toml:"tx_channels"`
	RxTimeout  int      `toml:"rx_timeout"` // ticks
	CSMA       bool     `toml:"csma"`
	TCA        int      `toml:"tca"`     // ticks
	Backoff    int      `toml:"backoff"` // ticks
	Flood      int      `toml:"flood"`   // background flood, ticks
	FrameGuard Duration `toml:"frame_guard"`
	MFP        bool     `toml:"mfp"`
	Paging     bool     `toml:"paging"`
	FEC        bool     `toml:"fec"`
	Realtime   bool     `toml:"realtime"`
}

// ChannelConfig is a channel configuration record in friendly units.
type ChannelConfig struct {
	ID        int     `toml:"id"`
	Autoscale int     `toml:"autoscale"`
	EIRP      float64 `toml:"eirp_dbm"`
	LinkQual  int     `toml:"link_qual"`
	CSThr     int     `toml:"cs_thr_dbm"`
	CCAThr    int     `toml:"cca_thr_dbm"`
}

// StoreConfig locates the file store.
type StoreConfig struct {
	Path string `toml:"path"` // SQLite database, empty for memory
}

// MQTTConfig describes the broker connection of the gateway.
type MQTTConfig struct {
	Broker   string `toml:"broker"`
	ClientID string `toml:"client_id"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Prefix   string `toml:"prefix"`
	Format   string `toml:"format"` // json or cbor
}

// LoggingConfig controls logging.
type LoggingConfig struct {
	Level  string `toml:"level"` // log spec, e.g. "info,radio=debug"
	Format string `toml:"format"`
}

// Duration is a time.Duration written as a string such as "1ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Default returns the embedded defaults.
func Default() Config {
	var c Config
	if _, err := toml.Decode(defaultTOML, &c); err != nil {
		panic("config: bad default.toml: " + err.Error())
	}
	return c
}

// Load overlays the file at path onto the defaults. An empty path means DefaultPath.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return c, fmt.Errorf("config: %w", err)
	}
	if err := c.overlay(string(data)); err != nil {
		return c, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse overlays TOML text onto the defaults.
func Parse(text string) (Config, error) {
	c := Default()
	if err := c.overlay(text); err != nil {
		return c, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// overlay decodes text on top of c. A [[channel]] list in the text replaces the default list
// as a whole.
func (c *Config) overlay(text string) error {
	channels := c.Channel
	c.Channel = nil
	md, err := toml.Decode(text, c)
	if err != nil {
		return err
	}
	if !md.IsDefined("channel") {
		c.Channel = channels
	}
	if keys := md.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(names, ", "))
	}
	return c.Validate()
}

// Validate checks values that would otherwise fail deep inside the link layer.
func (c *Config) Validate() error {
	switch c.Radio.Host {
	case "embd", "periph":
	default:
		return fmt.Errorf("radio.host must be embd or periph, not %q", c.Radio.Host)
	}
	if c.MAC.Depth < 2 {
		return fmt.Errorf("mac.depth must be at least 2, not %d", c.MAC.Depth)
	}
	if c.MAC.Tick.Duration <= 0 {
		return errors.New("mac.tick must be positive")
	}
	for _, id := range c.MAC.TxChannels {
		if id < 0 || id > 0xFF {
			return fmt.Errorf("mac.tx_channels: bad channel %#x", id)
		}
	}
	seen := map[int]bool{}
	for _, ch := range c.Channel {
		if ch.ID < 0 || ch.ID >= phymac.Wildcard {
			return fmt.Errorf("channel: bad id %#x", ch.ID)
		}
		if seen[ch.ID] {
			return fmt.Errorf("channel: duplicate id %#x", ch.ID)
		}
		seen[ch.ID] = true
	}
	switch c.MQTT.Format {
	case "json", "cbor":
	default:
		return fmt.Errorf("mqtt.format must be json or cbor, not %q", c.MQTT.Format)
	}
	if _, err := logging.ParseSpec(c.Logging.Level); err != nil {
		return err
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return err
	}
	return nil
}

// Record converts the channel to its file store record.
func (ch ChannelConfig) Record() phymac.Record {
	return phymac.Record{
		SpectrumID: byte(ch.ID) & phymac.SpectrumMask,
		Autoscale:  byte(ch.Autoscale),
		TxEIRP:     phymac.DBmToEIRP(ch.EIRP),
		LinkQual:   byte(ch.LinkQual),
		CSThr:      phymac.DBmToRSSI(ch.CSThr),
		CCAThr:     phymac.DBmToRSSI(ch.CCAThr),
	}
}

// Table returns the channel records in configuration order.
func (c *Config) Table() phymac.StaticTable {
	t := make(phymac.StaticTable, len(c.Channel))
	for i, ch := range c.Channel {
		t[i] = ch.Record()
	}
	return t
}

// Kernel returns the kernel parameters.
func (m MACConfig) Kernel() kernel.Config {
	tx := make([]byte, len(m.TxChannels))
	for i, id := range m.TxChannels {
		tx[i] = byte(id)
	}
	return kernel.Config{
		Tick:       m.Tick.Duration,
		TxChannels: tx,
		CSMA:       m.CSMA,
		TCA:        m.TCA,
		RxTimeout:  m.RxTimeout,
		Backoff:    uint16(m.Backoff),
		Flood:      m.Flood,
		FrameGuard: m.FrameGuard.Duration,
		Realtime:   m.Realtime,
	}
}

// Logger returns the logging options, flag is the command-line spec and wins when non-empty.
func (l LoggingConfig) Logger(flag string) logging.Options {
	f, _ := logging.ParseFormat(l.Format)
	return logging.Options{
		Flag:   flag,
		Env:    os.Getenv(logging.EnvVar),
		Config: l.Level,
		Format: f,
	}
}

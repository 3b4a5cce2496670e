// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package cli

import (
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChannelID(t *testing.T) {
	tests := []struct {
		in   string
		want ChannelID
		err  bool
	}{
		{"0x12", 0x12, false},
		{"18", 0x12, false},
		{"0x92", 0x92, false},
		{"0x7f", 0, true},
		{"0xff", 0, true},
		{"0x100", 0, true},
		{"ch1", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChannelID(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "0x02", ChannelID(2).String())
}

func TestParseHex(t *testing.T) {
	b, err := ParseHex("0a:0b 0C")
	require.NoError(t, err)
	assert.Equal(t, Hex{0x0a, 0x0b, 0x0c}, b)

	_, err = ParseHex("abc")
	assert.Error(t, err)
}

type testCmd struct {
	Globals
	Channel ChannelID `help:"channel"`
	Data    Hex       `arg:"" optional:""`
}

func TestMappers(t *testing.T) {
	var c testCmd
	parser, err := kong.New(&c, Options("test", "test")...)
	require.NoError(t, err)
	_, err = parser.Parse([]string{"--channel", "0x22", "cafe"})
	require.NoError(t, err)
	assert.Equal(t, ChannelID(0x22), c.Channel)
	assert.Equal(t, Hex{0xca, 0xfe}, c.Data)

	_, err = parser.Parse([]string{"--channel", "0x7f"})
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Setenv("DASH7_LOG", "")
	g := Globals{Config: filepath.Join(t.TempDir(), "none.toml"), Log: "debug"}
	cfg, log, err := g.Load()
	require.NoError(t, err)
	assert.Equal(t, "embd", cfg.Radio.Host)
	assert.NotNil(t, log)

	g.Log = "loud"
	_, _, err = g.Load()
	assert.Error(t, err)
}

// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvVar is the environment variable holding a log spec.
const EnvVar = "DASH7_LOG"

// Format is the output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat parses text or json, empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("logging: unknown format %q", s)
}

// Options selects the spec and output. The first non-empty of Flag, Env and Config is used.
type Options struct {
	Flag   string
	Env    string
	Config string
	Format Format
	Output io.Writer // default os.Stderr
}

// New returns a logger with per-component filtering.
func New(o Options) (*slog.Logger, error) {
	var s string
	for _, c := range []string{o.Flag, o.Env, o.Config} {
		if c != "" {
			s = c
			break
		}
	}
	spec, err := ParseSpec(s)
	if err != nil {
		return nil, err
	}
	out := o.Output
	if out == nil {
		out = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: LevelTrace.Slog()}
	var inner slog.Handler
	if o.Format == FormatJSON {
		inner = slog.NewJSONHandler(out, hopts)
	} else {
		inner = slog.NewTextHandler(out, hopts)
	}
	return slog.New(NewFilter(inner, &spec)), nil
}

// FromEnv returns a text logger configured from DASH7_LOG.
func FromEnv() (*slog.Logger, error) { return New(Options{Env: os.Getenv(EnvVar)}) }

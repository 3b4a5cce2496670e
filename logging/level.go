// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package logging builds the slog loggers used throughout the link layer.
//
// Verbosity is set by a spec string of the form "<level>[,<component>=<level>]...", for
// example "info,radio=debug,sx1231=trace". Each package tags its logger with a component
// attribute and the handler filters records by the level given for that component.
package logging

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level is a log level. Trace sits below slog's debug and is used for register and FIFO
// dumps.
type Level int

const (
	LevelTrace Level = -8
	LevelDebug Level = Level(slog.LevelDebug)
	LevelInfo  Level = Level(slog.LevelInfo)
	LevelWarn  Level = Level(slog.LevelWarn)
	LevelError Level = Level(slog.LevelError)
)

// ParseLevel parses trace, debug, info, warn or error, ignoring case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error", "err":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("logging: unknown level %q", s)
}

// Slog converts to the slog level.
func (l Level) Slog() slog.Level { return slog.Level(l) }

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

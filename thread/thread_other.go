// Copyright 2016 by Thorsten von Eicken, see LICENSE file

//go:build !linux

package thread

import (
	"errors"
	"runtime"
)

const (
	FIFO = 1
	RR   = 2
)

const DefaultPriority = 10

var errUnsupported = errors.New("thread: realtime scheduling not supported on this OS")

func Realtime() error { return Set(RR, DefaultPriority) }

func Set(policy, priority int) error {
	runtime.LockOSThread()
	return errUnsupported
}

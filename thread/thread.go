// Copyright 2016 by Thorsten von Eicken, see LICENSE file

//go:build linux

// Package thread pins goroutines that service the radio to realtime OS threads.
package thread

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Scheduling policies.
const (
	FIFO = unix.SCHED_FIFO
	RR   = unix.SCHED_RR
)

// DefaultPriority is somewhere in the lower middle of the realtime range.
const DefaultPriority = 10

// Realtime locks the calling goroutine to its own kernel thread and elevates that
// thread's priority to realtime using round-robin scheduling at DefaultPriority.
func Realtime() error { return Set(RR, DefaultPriority) }

// Set locks the calling goroutine to its own kernel thread and applies policy and priority
// to the thread. The goroutine stays locked even if this fails.
func Set(policy, priority int) error {
	runtime.LockOSThread()
	attr := unix.SchedAttr{Policy: uint32(policy), Priority: uint32(priority)}
	if err := unix.SchedSetAttr(unix.Gettid(), &attr, 0); err != nil {
		return fmt.Errorf("thread: sched_setattr policy %d priority %d: %w", policy, priority, err)
	}
	return nil
}

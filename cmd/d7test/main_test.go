// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tve/dash7/codec"
	"github.com/tve/dash7/radio"
	"github.com/tve/dash7/session"
)

func TestBuildPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		numbers []int
		bg      bool
		want    []byte
		err     bool
	}{
		{"hex", []byte{1, 2}, nil, false, []byte{1, 2}, false},
		{"numbers", nil, []int{1, -1}, false, []byte{formatNumbers, 0x82, 0x81}, false},
		{"both", []byte{1}, []int{1}, false, nil, true},
		{"background padded", []byte{9}, nil, true, []byte{9, 0, 0, 0, 0}, false},
		{"background too long", make([]byte, 6), nil, true, nil, true},
		{"too long", make([]byte, codec.MaxFrame), nil, false, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildPayload(tt.payload, tt.numbers, tt.bg)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// kernelSim plays the kernel: it activates the session it is given and reports to its applet.
type kernelSim struct {
	sched  *session.Scheduler
	report func(s *session.Session)
}

func (k *kernelSim) Do(ctx context.Context, fn func(s *session.Scheduler)) error {
	fn(k.sched)
	top := k.sched.Top()
	go func() {
		top.Applet.Run(top)
		k.report(top)
	}()
	return nil
}

func TestDialogReceive(t *testing.T) {
	k := &kernelSim{sched: session.New(4)}
	k.report = func(s *session.Session) {
		s.Applet.Done(s, 1, 0)
		s.Applet.Done(s, 0, -1)
	}
	var crcs []int
	var started bool
	st, err := dialog(context.Background(), k, 0x12, session.ReqRX, true,
		func(s *session.Session) { started = true },
		func(s *session.Session, crc int) { crcs = append(crcs, crc) })
	require.NoError(t, err)
	assert.Equal(t, radio.OK, st)
	assert.True(t, started)
	assert.Equal(t, []int{0, -1}, crcs)
	assert.Equal(t, byte(session.FlagBackground), k.sched.Top().Flags)
}

func TestDialogFailure(t *testing.T) {
	k := &kernelSim{sched: session.New(4)}
	k.report = func(s *session.Session) { s.Applet.Done(s, int(radio.CCAFail), 0) }
	st, err := dialog(context.Background(), k, 0x12, session.ReqTX, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, radio.CCAFail, st)
}

func TestDialogCancelled(t *testing.T) {
	k := &kernelSim{sched: session.New(4), report: func(*session.Session) {}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := dialog(ctx, k, 0x12, session.ReqRX, false, nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

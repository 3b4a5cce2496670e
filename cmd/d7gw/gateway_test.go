// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tve/dash7/codec"
	"github.com/tve/dash7/phymac"
	"github.com/tve/dash7/queue"
	"github.com/tve/dash7/radio"
	"github.com/tve/dash7/session"
	"github.com/tve/dash7/varint"
)

// fakeLink runs requests right away on a scheduler guarded by a mutex.
type fakeLink struct {
	sync.Mutex
	sched *session.Scheduler
}

func (l *fakeLink) Do(ctx context.Context, fn func(s *session.Scheduler)) error {
	l.Lock()
	defer l.Unlock()
	fn(l.sched)
	return nil
}

type published struct {
	suffix  string
	payload any
}

type fakePub chan published

func (p fakePub) Publish(suffix string, payload any) error {
	p <- published{suffix, payload}
	return nil
}

type testGateway struct {
	*gateway
	link *fakeLink
	pub  fakePub
	txq  *queue.Queue
	rxq  *queue.Queue
}

func newTestGateway(t *testing.T, depth int) *testGateway {
	txq, rxq := queue.New(256), queue.New(256)
	r := radio.New(nil, phymac.StaticTable{}, nil, radio.WithQueues(txq, rxq))
	l := &fakeLink{sched: session.New(depth)}
	pub := make(fakePub, 8)
	g := newGateway(l, r, pub, 0x12, false, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &testGateway{gateway: g, link: l, pub: pub, txq: txq, rxq: rxq}
}

func (tg *testGateway) sessions() int {
	tg.link.Lock()
	defer tg.link.Unlock()
	return tg.link.sched.Len()
}

func (tg *testGateway) top() *session.Session {
	tg.link.Lock()
	defer tg.link.Unlock()
	return tg.link.sched.Top()
}

func recvPub(t *testing.T, p fakePub) published {
	t.Helper()
	select {
	case v := <-p:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
	}
	return published{}
}

func TestListenAndPublish(t *testing.T) {
	tg := newTestGateway(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tg.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	require.Eventually(t, func() bool { return tg.sessions() == 1 }, time.Second, time.Millisecond)
	s := tg.top()
	assert.Equal(t, byte(0x12), s.Channel)
	assert.Equal(t, byte(session.ReqRX|session.Init), s.Netstate)

	// A frame comes in: the radio leaves it in the RX queue and reports.
	tg.rxq.Empty()
	require.NoError(t, codec.AppendFrame(tg.rxq, varint.Append([]byte{FormatNumbers}, 7, -3)))
	tg.link.Lock()
	tg.received(s, 0, 0)
	tg.link.Unlock()

	p := recvPub(t, tg.pub)
	assert.Equal(t, "rx", p.suffix)
	pkt := p.payload.(RxPacket)
	assert.Equal(t, byte(0x12), pkt.Channel)
	assert.True(t, pkt.CRCOK)
	assert.Equal(t, "numbers", pkt.Format)
	assert.Equal(t, Numbers{7, -3}, pkt.Data)
	assert.Equal(t, []byte{FormatNumbers, 0x8e, 0x85}, pkt.Payload)

	// The listener is re-armed.
	require.Eventually(t, func() bool { return tg.sessions() == 2 }, time.Second, time.Millisecond)
}

func TestBadCRCNotDecoded(t *testing.T) {
	tg := newTestGateway(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tg.publish(ctx)

	tg.rxq.Empty()
	require.NoError(t, codec.AppendFrame(tg.rxq, []byte{FormatNumbers, 0x82}))
	tg.received(&session.Session{Channel: 0x22}, 0, -1)

	pkt := recvPub(t, tg.pub).payload.(RxPacket)
	assert.False(t, pkt.CRCOK)
	assert.Empty(t, pkt.Format)
	assert.Equal(t, []byte{FormatNumbers, 0x82}, pkt.Payload)
}

func TestTimeoutRearmsOnly(t *testing.T) {
	tg := newTestGateway(t, 4)
	tg.received(&session.Session{Channel: 0x12}, int(radio.Timeout), 0)
	assert.Len(t, tg.rx, 0)
	assert.Len(t, tg.rearm, 1)
}

func TestTransmit(t *testing.T) {
	tg := newTestGateway(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tg.publish(ctx)

	require.NoError(t, tg.Transmit(ctx, TxPacket{Channel: 0x22, Payload: []byte("hi"), Wait: 5}))
	s := tg.top()
	require.NotNil(t, s)
	assert.Equal(t, uint16(5), s.Counter)
	assert.Equal(t, byte(session.ReqTX|session.Init), s.Netstate)

	s.Applet.Run(s)
	assert.Equal(t, []byte{6, 0, 'h', 'i'}, tg.txq.Bytes())

	s.Applet.Done(s, 0, 0)
	p := recvPub(t, tg.pub)
	assert.Equal(t, "txstatus", p.suffix)
	assert.Equal(t, TxStatus{Channel: 0x22, OK: true}, p.payload)

	s.Applet.Done(s, int(radio.CCAFail), 0)
	st := recvPub(t, tg.pub).payload.(TxStatus)
	assert.False(t, st.OK)
	assert.Equal(t, "radio: channel busy", st.Error)
}

func TestTransmitBackground(t *testing.T) {
	tg := newTestGateway(t, 4)
	ctx := context.Background()
	assert.Error(t, tg.Transmit(ctx, TxPacket{Channel: 0x02, Payload: []byte{1, 2}, Background: true}))

	require.NoError(t, tg.Transmit(ctx, TxPacket{Channel: 0x02, Payload: []byte{1, 2, 3, 4, 5},
		Background: true}))
	s := tg.top()
	assert.Equal(t, byte(session.FlagBackground), s.Flags)
	s.Applet.Run(s)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, tg.txq.Bytes())
}

func TestTransmitFull(t *testing.T) {
	tg := newTestGateway(t, 2)
	ctx := context.Background()
	require.NoError(t, tg.Transmit(ctx, TxPacket{Channel: 0x12, Payload: []byte{1}}))
	assert.EqualError(t, tg.Transmit(ctx, TxPacket{Channel: 0x12, Payload: []byte{2}}), "scheduler full")
	assert.ErrorIs(t, tg.Transmit(ctx, TxPacket{Channel: 0x12, Payload: make([]byte, 252)}),
		codec.ErrTooLong)
}

// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/fxamacker/cbor/v2"

	"github.com/tve/dash7/config"
)

// Message is a message received from the broker, or published locally, on one of the
// gateway's topics. It isolates the gateway from the paho client.
type Message struct {
	Topic   string // full MQTT topic
	Payload []byte // encoded payload
}

// broker is the part of the paho client the gateway uses.
type broker interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// payloadCodec encodes the payloads of published and subscribed messages.
type payloadCodec struct {
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

var payloadCodecs = map[string]payloadCodec{
	"json": {json.Marshal, json.Unmarshal},
	"cbor": {cbor.Marshal, cbor.Unmarshal},
}

// mq is a handle onto a MQTT broker connection.
type mq struct {
	conn    broker
	codec   payloadCodec
	prefix  string
	log     *slog.Logger
	hooksMu sync.Mutex
	hooks   map[string][]func(Message) // local subscriptions by topic
	dedupMu sync.Mutex                 // protects dedup
	dedup   map[uint64]time.Time       // de-dup of messages we sent
}

// newMQ connects to a broker and returns a new mq object. The connection is persistent, i.e.,
// re-establishes itself if there is a disconnect. Subscriptions also get renewed after a
// reconnect.
func newMQ(conf config.MQTTConfig, log *slog.Logger) (*mq, error) {
	id := conf.ClientID
	if id == "" {
		hostname, _ := os.Hostname()
		id = "d7gw-" + hostname
	}
	log.Debug("configuring MQTT", "client_id", id, "broker", conf.Broker)
	mqtt.ERROR = slog.NewLogLogger(log.Handler(), slog.LevelError)
	opts := mqtt.NewClientOptions().AddBroker(conf.Broker)
	opts.ClientID = id
	opts.Username = conf.User
	opts.Password = conf.Password
	opts.AutoReconnect = true
	opts.CleanSession = false

	conn := mqtt.NewClient(opts)
	token := conn.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt: timeout connecting to %s", conf.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: %w", err)
	}
	log.Info("MQTT connected", "broker", conf.Broker)
	return newMQWith(conn, conf, log), nil
}

func newMQWith(conn broker, conf config.MQTTConfig, log *slog.Logger) *mq {
	return &mq{
		conn:   conn,
		codec:  payloadCodecs[conf.Format],
		prefix: strings.TrimSuffix(conf.Prefix, "/"),
		log:    log,
		hooks:  make(map[string][]func(Message)),
		dedup:  make(map[uint64]time.Time),
	}
}

// Topic returns the full topic for a suffix.
func (mq *mq) Topic(suffix string) string { return mq.prefix + "/" + suffix }

// gc removes message de-duplication IDs that are older than a few minutes. These are
// evidently ones for which we don't have a subscription.
func (mq *mq) gc(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			mq.expire(now.Add(-10 * time.Minute))
		}
	}
}

func (mq *mq) expire(tooOld time.Time) {
	mq.dedupMu.Lock()
	defer mq.dedupMu.Unlock()
	for h, t := range mq.dedup {
		if t.Before(tooOld) {
			delete(mq.dedup, h)
		}
	}
}

// Publish encodes payload, hands it to any local subscriptions and publishes it to the broker.
func (mq *mq) Publish(suffix string, payload any) error {
	data, err := mq.codec.marshal(payload)
	if err != nil {
		return fmt.Errorf("mqtt: encoding %s: %w", suffix, err)
	}
	topic := mq.Topic(suffix)

	mq.hooksMu.Lock()
	hooks := mq.hooks[topic]
	mq.hooksMu.Unlock()
	for _, fn := range hooks {
		fn(Message{topic, data})
	}

	// Add message ID to de-dup hash with timestamp for GC.
	mq.dedupMu.Lock()
	mq.dedup[hashMessage(topic, data)] = time.Now()
	mq.dedupMu.Unlock()

	mq.conn.Publish(topic, 1, false, data)
	return nil
}

// Subscribe subscribes to a topic, messages published locally are delivered right away and
// their echo from the broker is dropped.
func (mq *mq) Subscribe(suffix string, fn func(Message)) error {
	topic := mq.Topic(suffix)
	mq.hooksMu.Lock()
	mq.hooks[topic] = append(mq.hooks[topic], fn)
	mq.hooksMu.Unlock()

	handler := func(c mqtt.Client, m mqtt.Message) {
		// Check whether we sent it, in which case we already forwarded locally.
		hash := hashMessage(m.Topic(), m.Payload())
		mq.dedupMu.Lock()
		_, dup := mq.dedup[hash]
		delete(mq.dedup, hash)
		mq.dedupMu.Unlock()
		if dup {
			return
		}
		fn(Message{m.Topic(), m.Payload()})
	}

	token := mq.conn.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(2 * time.Second) {
		return errors.New("mqtt: timeout subscribing to " + topic)
	}
	return token.Error()
}

// Decode decodes a message payload into v.
func (mq *mq) Decode(m Message, v any) error {
	if err := mq.codec.unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("mqtt: cannot decode payload for %s: %w", m.Topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (mq *mq) Close() {
	mq.conn.Disconnect(250)
}

func hashMessage(topic string, payload []byte) uint64 {
	h := fnv.New64()
	h.Write([]byte(topic))
	h.Write([]byte("ǂ"))
	h.Write(payload)
	return h.Sum64()
}

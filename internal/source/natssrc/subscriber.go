// Package natssrc is a reference pipeline.PacketSource built on
// github.com/nats-io/nats.go, adapted from the teacher's
// internal/probe.Subscriber. The teacher's subscriber decodes a
// protobuf-enveloped message (api/gen/v1.PacketInfo) before handing a
// packet to its own handler; that generated package does not exist in
// this codebase (see DESIGN.md's "control" entry), and SPEC_FULL.md §6
// states plainly that there is no wire format to parse here, so this
// source instead treats each NATS message's payload as the raw packet
// bytes directly — nats.Msg is itself the wire envelope.
package natssrc

import (
	"context"
	"time"

	"NetSpectraDPI/internal/dpimodel"

	"github.com/nats-io/nats.go"
)

// Subscriber turns a NATS subject into a pull-based packet source: the
// subscription callback (mirroring the teacher's push-based Start) fans
// messages into a bounded channel, and ReadPacket pulls from it.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	packets chan *dpimodel.PacketRecord
	closed  chan struct{}
}

// Connect dials url and subscribes to subject, buffering up to queueLen
// undelivered packets before the subscription callback starts blocking.
func Connect(url, subject string, queueLen int) (*Subscriber, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	s := &Subscriber{
		nc:      nc,
		subject: subject,
		packets: make(chan *dpimodel.PacketRecord, queueLen),
		closed:  make(chan struct{}),
	}
	sub, err := nc.Subscribe(subject, s.onMessage)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.sub = sub
	return s, nil
}

// arrivalTimeHeader is the NATS message header carrying the packet's
// original capture timestamp, RFC3339Nano-encoded. Not every publisher
// sets it (plain nats.Publish never attaches headers), so its absence or
// malformed value just falls back to the time the message is handled.
const arrivalTimeHeader = "Nats-Arrival-Time"

func (s *Subscriber) onMessage(msg *nats.Msg) {
	arrival := time.Now()
	if v := msg.Header.Get(arrivalTimeHeader); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			arrival = t
		}
	}
	select {
	case s.packets <- &dpimodel.PacketRecord{Payload: msg.Data, ArrivalTime: arrival}:
	case <-s.closed:
	}
}

// ReadPacket implements pipeline.PacketSource. It blocks until a message
// arrives, ctx is canceled, or Close is called.
func (s *Subscriber) ReadPacket(ctx context.Context) (*dpimodel.PacketRecord, error) {
	select {
	case pkt, ok := <-s.packets:
		if !ok {
			return nil, context.Canceled
		}
		return pkt, nil
	case <-s.closed:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close unsubscribes and closes the underlying NATS connection.
func (s *Subscriber) Close() {
	close(s.closed)
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}

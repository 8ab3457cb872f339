// Package wsconduit adapts concrete transports into the Conduit contract of
// spec §4.1: a (Sink, Source) pair of {Text, Binary, Close} messages. This is
// the only vocabulary the portal shares with the transport — gorilla/websocket
// (or an in-memory channel pair, for tests) never leaks past this package.
package wsconduit

import (
	"context"
	"fmt"

	"github.com/1ureka/wormhole/internal/actor"
)

// Kind distinguishes the three Conduit message variants (spec §3).
type Kind uint8

const (
	KindText Kind = iota
	KindBinary
	KindClose
)

// Message is a single Conduit-level item, carried in either direction.
type Message struct {
	Kind        Kind
	Text        string
	Binary      []byte
	CloseReason string
}

// TextMessage / BinaryMessage / CloseMessage build Messages for the common
// cases, mirroring the teacher's message constructors in internal/signaling.
func TextMessage(s string) Message   { return Message{Kind: KindText, Text: s} }
func BinaryMessage(b []byte) Message { return Message{Kind: KindBinary, Binary: b} }
func CloseMessage(reason string) Message {
	return Message{Kind: KindClose, CloseReason: reason}
}

// Sink accepts outbound Conduit messages sequentially. Implementations MAY
// return an error on Send after the transport has closed (spec §4.1).
type Sink interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Source yields inbound Conduit messages until the transport ends. Recv
// returns an error (including io.EOF-style stream end) exactly once, after
// which the source must not be read again.
type Source interface {
	Recv(ctx context.Context) (Message, error)
}

// PortalInbound is the narrow view the receive loop needs from a portal —
// just enough to demultiplex frames, without the conduit layer depending on
// portal internals (spec §4.1, §9 "exactly one receive loop drives the
// source per portal").
type PortalInbound interface {
	InboundText(text string)
	InboundBinary(data []byte)
	InboundClose(reason string)
}

// ReceiveLoop drives src until it ends, translating each item into exactly
// one call on p. It always finishes by calling InboundClose exactly once —
// whether the source closed cleanly, errored, or delivered an explicit Close
// message — grounded on ractor_wormhole's conduit::receive_loop, which casts
// PortalActorMessage::Close unconditionally once the loop exits. This is the
// fix for the "disconnected internal channel" defect noted in spec §9: there
// is exactly one call site wiring source → portal, never a second internal
// channel nothing reads from.
func ReceiveLoop(ctx context.Context, src Source, p PortalInbound) {
	for {
		msg, err := src.Recv(ctx)
		if err != nil {
			p.InboundClose(err.Error())
			return
		}

		switch msg.Kind {
		case KindText:
			p.InboundText(msg.Text)
		case KindBinary:
			p.InboundBinary(msg.Binary)
		case KindClose:
			p.InboundClose(msg.CloseReason)
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Dedicated-writer sink — spec §9 "Sink ownership": wraps a raw write
// function in its own actor so that, even when the underlying sender isn't
// safe for concurrent use, all writes are serialized through one goroutine.
// Directly generalizes internal/transport/sender.go's backpressure loop from
// DataChannel BufferedAmount polling to inbox-depth backpressure, since
// gorilla/websocket exposes no buffered-amount callback.
// ---------------------------------------------------------------------------

type outboundItem struct {
	msg Message
	ack chan error
}

// ActorSink is a Sink backed by a dedicated writer goroutine.
type ActorSink struct {
	cell *actor.Cell[outboundItem]
}

// NewActorSink spawns the writer goroutine, which calls write for every
// queued Message until ctx is cancelled or a Close message is written.
func NewActorSink(ctx context.Context, bufSize int, write func(Message) error) *ActorSink {
	cell := actor.Spawn(ctx, bufSize, func(ctx context.Context, inbox <-chan outboundItem) {
		for {
			select {
			case item := <-inbox:
				err := write(item.msg)
				if item.ack != nil {
					item.ack <- err
				}
				if item.msg.Kind == KindClose {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})
	return &ActorSink{cell: cell}
}

// Send enqueues msg and waits for the writer goroutine to attempt it.
func (s *ActorSink) Send(ctx context.Context, msg Message) error {
	item := outboundItem{msg: msg, ack: make(chan error, 1)}
	if !s.cell.CastBlocking(ctx, item) {
		if !s.cell.Alive() {
			return fmt.Errorf("wsconduit: sink closed")
		}
		return ctx.Err()
	}
	select {
	case err := <-item.ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the writer goroutine. Safe to call more than once.
func (s *ActorSink) Close() error {
	s.cell.Stop()
	return nil
}

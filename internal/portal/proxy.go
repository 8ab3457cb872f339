package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/1ureka/wormhole/internal/actor"
	"github.com/1ureka/wormhole/internal/protocol"
	"github.com/1ureka/wormhole/internal/wherr"
)

// ProxyCodec tells InstantiateProxy how to turn a local message of type M
// into wire bytes. Encode returns a non-nil reply when m is ask-style — the
// proxy then sends an Ask frame and arranges for the peer's Reply/Error to
// resolve it; otherwise it sends a fire-and-forget Send frame.
type ProxyCodec[M any, R any] struct {
	TypeTag     string
	Encode      func(m M) (payload []byte, reply *actor.ReplyPort[R])
	DecodeReply func(payload []byte) (R, error)
}

// InstantiateProxy spawns a local actor standing in for ref: every message
// cast into the returned Cell is encoded and forwarded to the peer as a Send
// or Ask frame targeting ref.RemoteID (spec §4.4 "proxy actor"). The proxy
// stops when the portal drains, since its Cell is spawned from the portal's
// own context.
func InstantiateProxy[M any, R any](p *Portal, ref RemoteRef, codec ProxyCodec[M, R]) (*actor.Cell[M], error) {
	if ref.TypeTag != codec.TypeTag {
		return nil, wherr.New(wherr.KindTypeMismatch, "portal.instantiate_proxy",
			fmt.Errorf("expected type tag %q, remote ref is %q", codec.TypeTag, ref.TypeTag))
	}

	cell := actor.Spawn(p.ctx, 64, func(ctx context.Context, inbox <-chan M) {
		for {
			select {
			case m := <-inbox:
				payload, reply := codec.Encode(m)
				if reply == nil {
					p.sendAsync(&protocol.Frame{Tag: protocol.TagSend, TargetID: ref.RemoteID, Payload: payload})
					continue
				}

				replyID := registerAskReply(p, reply, codec.DecodeReply)
				p.sendAsync(&protocol.Frame{Tag: protocol.TagAsk, TargetID: ref.RemoteID, ReplyID: replyID, Payload: payload})
				if dl, ok := reply.Deadline(); ok {
					go p.waitDeadline(replyID, dl)
				}

			case <-ctx.Done():
				return
			}
		}
	})

	return cell, nil
}

// registerAskReply adds reply to the portal's ask table under a fresh
// reply_id, bridging Reply/Error frames back to a typed ReplyPort via
// decode. Used both by InstantiateProxy (outbound Ask from a proxy) and
// directly by application code that wants to Ask a remote ref without going
// through a Cell (Ask, below).
func registerAskReply[R any](p *Portal, reply *actor.ReplyPort[R], decode func([]byte) (R, error)) uint64 {
	idCh := make(chan uint64, 1)
	ok := p.cell.CastBlocking(p.ctx, func(s *state) {
		id := s.allocReplyID()
		s.askReplies[id] = &askEntry{
			resolve: func(payload []byte) {
				v, err := decode(payload)
				if err != nil {
					reply.Fail(err)
					return
				}
				reply.Resolve(v)
			},
			fail: reply.Fail,
		}
		idCh <- id
	})
	if !ok {
		reply.Fail(wherr.New(wherr.KindPeerClosed, "portal.ask", nil))
		return 0
	}
	select {
	case id := <-idCh:
		return id
	case <-p.cell.Done():
		reply.Fail(wherr.New(wherr.KindPeerClosed, "portal.ask", nil))
		return 0
	}
}

// Ask sends a one-shot Ask frame to ref without instantiating a proxy Cell,
// for call sites that want a plain request/response without modeling the
// remote actor as a local mailbox.
func Ask[M any, R any](ctx context.Context, p *Portal, ref RemoteRef, typeTag string,
	encode func(M) []byte, decodeReply func([]byte) (R, error), msg M, timeout time.Duration) (R, error) {
	var zero R
	if ref.TypeTag != typeTag {
		return zero, wherr.New(wherr.KindTypeMismatch, "portal.ask",
			fmt.Errorf("expected type tag %q, remote ref is %q", typeTag, ref.TypeTag))
	}

	reply := actor.NewReplyPort[R]()
	if timeout > 0 {
		reply.SetDeadline(time.Now().Add(timeout))
	}
	replyID := registerAskReply(p, reply, decodeReply)
	p.sendAsync(&protocol.Frame{Tag: protocol.TagAsk, TargetID: ref.RemoteID, ReplyID: replyID, Payload: encode(msg)})
	if dl, ok := reply.Deadline(); ok {
		go p.waitDeadline(replyID, dl)
	}

	return reply.Wait(ctx)
}

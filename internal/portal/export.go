package portal

import (
	"fmt"

	"github.com/1ureka/wormhole/internal/actor"
	"github.com/1ureka/wormhole/internal/protocol"
)

// Export registers cell as a local actor reachable from the peer, returning
// the local_id to hand out — either via Advertise (PublishNamedActor) or
// embedded as a handle token inside another message's payload (spec §3, §9).
// Calling Export again for the same cell returns its existing local_id
// instead of minting a new export row (spec §4.3 "allocates a local_id if
// not yet exported").
//
// decode is called once per inbound frame targeting this local_id: with a
// nil reply for a Send frame, or a fresh *actor.ReplyPort[R] for an Ask
// frame, bound to the Ask's reply_id. encodeReply turns whatever the
// exported actor resolves that reply port with back into wire bytes; pass
// nil if M never answers asks (R can then be struct{}).
func Export[M any, R any](
	p *Portal,
	cell *actor.Cell[M],
	typeTag string,
	decode func(payload []byte, reply *actor.ReplyPort[R]) (M, error),
	encodeReply func(R) []byte,
) uint64 {
	idCh := make(chan uint64, 1)
	ok := p.cell.CastBlocking(p.ctx, func(s *state) {
		if id, already := s.exportedCells[cell]; already {
			idCh <- id
			return
		}

		id := s.allocLocalID()

		entry := &exportEntry{
			localID: id,
			typeTag: typeTag,
			alive:   cell.Alive,
			deliverSend: func(payload []byte) error {
				msg, err := decode(payload, nil)
				if err != nil {
					return err
				}
				cell.Cast(msg)
				return nil
			},
			deliverAsk: func(payload []byte, replyID uint64) error {
				reply := actor.NewReplyPort[R]()
				msg, err := decode(payload, reply)
				if err != nil {
					return err
				}
				go awaitAskReply(p, reply, replyID, encodeReply)
				if !cell.Cast(msg) {
					reply.Fail(fmt.Errorf("portal: exported actor unavailable"))
				}
				return nil
			},
		}
		s.exports[id] = entry
		s.exportedCells[cell] = id
		idCh <- id
	})
	if !ok {
		return 0 // portal already closed; the returned id is inert.
	}
	select {
	case id := <-idCh:
		return id
	case <-p.cell.Done():
		return 0 // portal closed before registering; the returned id is inert.
	}
}

// PublishNamedActor exports cell and advertises it under name in one step —
// spec §4.3 operation "publish_named_actor(name, actor)".
func PublishNamedActor[M any, R any](
	p *Portal,
	name string,
	cell *actor.Cell[M],
	typeTag string,
	decode func(payload []byte, reply *actor.ReplyPort[R]) (M, error),
	encodeReply func(R) []byte,
) uint64 {
	id := Export(p, cell, typeTag, decode, encodeReply)
	p.Advertise(name, id, typeTag)
	return id
}

// awaitAskReply blocks until the exported actor resolves or fails reply,
// then sends the corresponding Reply/Error frame back to the peer.
func awaitAskReply[R any](p *Portal, reply *actor.ReplyPort[R], replyID uint64, encodeReply func(R) []byte) {
	v, err := reply.Wait(p.ctx)
	if err != nil {
		p.sendAsync(&protocol.Frame{
			Tag: protocol.TagError, ReplyID: replyID,
			ErrKind: protocol.ErrorApplication, ErrMsg: err.Error(),
		})
		return
	}
	if encodeReply == nil {
		return
	}
	p.sendAsync(&protocol.Frame{Tag: protocol.TagReply, ReplyID: replyID, Payload: encodeReply(v)})
}
